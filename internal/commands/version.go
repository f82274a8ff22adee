package commands

const (
	AppName        = "datalogger-plots"
	CurrentVersion = "0.3.0"
)
