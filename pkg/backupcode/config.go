package backupcode

type Config struct {
	Count int `env:"BACKUP_CODES_COUNT" envDefault:"8"`
}
