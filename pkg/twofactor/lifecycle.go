package twofactor

// State is the two-factor lifecycle state of an account.
type State string

const (
	StateNotEnrolled         State = "not_enrolled"
	StatePendingVerification State = "pending_verification"
	StateEnabled             State = "enabled"
)

// Event triggers a lifecycle transition.
type Event string

const (
	EventBeginSetup      Event = "begin_setup"
	EventCompleteSetup   Event = "complete_setup"
	EventVerifyLogin     Event = "verify_login"
	EventRegenerateCodes Event = "regenerate_codes"
	EventDisable         Event = "disable"
)

type transition struct {
	from  State
	event Event
}

var transitions = map[transition]State{
	{StateNotEnrolled, EventBeginSetup}:            StatePendingVerification,
	{StatePendingVerification, EventCompleteSetup}: StateEnabled,
	{StateEnabled, EventVerifyLogin}:               StateEnabled,
	{StateEnabled, EventRegenerateCodes}:           StateEnabled,
	{StateEnabled, EventDisable}:                   StateNotEnrolled,
}

// rejections is the error returned when an event does not apply to the current state.
var rejections = map[Event]error{
	EventBeginSetup:      ErrAlreadyEnabled,
	EventCompleteSetup:   ErrAlreadyEnabled,
	EventVerifyLogin:     ErrNotEnabled,
	EventRegenerateCodes: ErrNotEnabled,
	EventDisable:         ErrNotEnabled,
}

// Next returns the state reached by firing event in from.
func Next(from State, event Event) (State, error) {
	if to, ok := transitions[transition{from, event}]; ok {
		return to, nil
	}
	if err, ok := rejections[event]; ok {
		return from, err
	}
	return from, ErrInvalidInput
}

// fire resolves the stored state of cred and applies event. The pending state
// lives with the client between begin and complete setup, so a stored
// not-enrolled credential counts as pending when completing setup.
func fire(cred *Credential, event Event) (State, error) {
	current := cred.State()
	if current == StateNotEnrolled && event == EventCompleteSetup {
		current = StatePendingVerification
	}
	return Next(current, event)
}
