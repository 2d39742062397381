package settings

import "sync"

type Arguments struct {
	// The file path for run records and generated scenario files
	DataDir string
	LogDir  string

	ConfigFile string

	// the host name or IP address the API listens on
	Host string

	// the port number the API listens on
	Port int

	// Path to the SUMO configuration (.sumocfg) file
	SumoConfig string

	// Path to the SUMO network (.net.xml) file
	NetworkFile string

	// Explicit path to the SUMO binary. When empty the binary is
	// resolved from SUMO_HOME or PATH.
	SumoBinary string

	// Launch sumo-gui instead of the headless binary
	UseGUI bool

	// Host SUMO's TraCI server is reached on
	TraCIHost string

	// First port probed when starting a TraCI session
	TraCIPort int

	// Strongly verbose logging
	Verbose bool

	AuthEnabled bool // Enable authentication

	Version string

	PrintToScreen bool

	Debug bool
}

var (
	instance *Arguments
	once     sync.Once
)

// GetSettings returns the global settings instance
func GetSettings() *Arguments {
	once.Do(func() {
		instance = &Arguments{}
	})
	return instance
}
