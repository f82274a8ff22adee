package main

import (
	"fmt"
	"os"

	"datalogger-plots/internal/commands"
)

func main() {
	fmt.Printf("%s version: %s\n", commands.AppName, commands.CurrentVersion)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "plot":
		plotCmd := commands.SetupPlotCommand()
		if err := plotCmd.Parse(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
			plotCmd.Usage()
			os.Exit(1)
		}

		options := commands.ParsePlotOptions(plotCmd)
		if err := commands.PlotCommand(options); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "serve":
		serveCmd := commands.SetupServeCommand()
		if err := serveCmd.Parse(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
			serveCmd.Usage()
			os.Exit(1)
		}

		if err := commands.ServeCommand(commands.ParseServeOptions(serveCmd)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "inspect":
		inspectCmd := commands.SetupInspectCommand()
		if err := inspectCmd.Parse(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
			inspectCmd.Usage()
			os.Exit(1)
		}

		if err := commands.InspectCommand(commands.ParseInspectOptions(inspectCmd)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s\n", commands.CurrentVersion)

	case "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("%s - Charts for datalogger CSV exports\n\n", commands.AppName)
	fmt.Println("Usage:")
	fmt.Println("  datalogger-plots <command> [options]")
	fmt.Println("\nAvailable Commands:")
	fmt.Println("  plot        Write one chart per Temp/Tension/Courant channel (PDF or PNG)")
	fmt.Println("  serve       Start the interactive chart UI")
	fmt.Println("  inspect     Summarize the channels of a file")
	fmt.Println("  version     Show version information")
	fmt.Println("  help        Show help information")
	fmt.Println("\nFor command-specific help:")
	fmt.Println("  datalogger-plots <command> --help")
}
