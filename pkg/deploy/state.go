package deploy

import "fmt"

// State is a step of the deploy and run lifecycle.
type State int

const (
	StateIdle State = iota
	StateArchitectureSelected
	StatePackageVerified
	StateUninstalled
	StateInstalled
	StateStaged
	StateArchived
	StateCommandLineOnly
	StateLaunched
	StateMonitoring
	StateSuccess
	StateTimeout
	StateError
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateArchitectureSelected: "architecture-selected",
	StatePackageVerified:      "package-verified",
	StateUninstalled:          "uninstalled",
	StateInstalled:            "installed",
	StateStaged:               "staged",
	StateArchived:             "archived",
	StateCommandLineOnly:      "commandline-only",
	StateLaunched:             "launched",
	StateMonitoring:           "monitoring",
	StateSuccess:              "success",
	StateTimeout:              "timeout",
	StateError:                "error",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateTimeout || s == StateError
}

var transitions = map[State][]State{
	StateIdle:                 {StateArchitectureSelected},
	StateArchitectureSelected: {StatePackageVerified, StateLaunched},
	StatePackageVerified:      {StateUninstalled},
	StateUninstalled:          {StateInstalled},
	StateInstalled:            {StateStaged, StateArchived, StateCommandLineOnly},
	StateStaged:               {StateLaunched},
	StateArchived:             {StateLaunched},
	StateCommandLineOnly:      {StateLaunched},
	StateLaunched:             {StateMonitoring, StateSuccess},
	StateMonitoring:           {StateSuccess, StateTimeout},
}

// CanTransition reports whether to may follow s. Every non-terminal state
// may fail into StateError.
func (s State) CanTransition(to State) bool {
	if to == StateError {
		return !s.Terminal()
	}
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type machine struct {
	state   State
	history []State
	device  string
	logger  Logger
}

func newMachine(device string, logger Logger) *machine {
	return &machine{state: StateIdle, history: []State{StateIdle}, device: device, logger: logger}
}

func (m *machine) reset() {
	m.state = StateIdle
	m.history = []State{StateIdle}
}

func (m *machine) advance(to State) error {
	if !m.state.CanTransition(to) {
		return fmt.Errorf("invalid deploy state transition %s -> %s", m.state, to)
	}
	m.logger.Debug("[%s] %s -> %s", m.device, m.state, to)
	m.state = to
	m.history = append(m.history, to)
	return nil
}

func (m *machine) states() []State {
	return append([]State(nil), m.history...)
}
