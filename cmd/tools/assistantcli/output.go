package main

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	assistantColor = color.New(color.FgCyan)
	categoryColor  = color.New(color.FgMagenta, color.Bold)
	escalateColor  = color.New(color.FgYellow, color.Bold)
	errorColor     = color.New(color.FgRed, color.Bold)
	dimColor       = color.New(color.Faint)
	matchColor     = color.New(color.FgGreen)
)

func printError(format string, args ...interface{}) {
	errorColor.Printf("✗ %s\n", fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...interface{}) {
	escalateColor.Printf("⚠ %s\n", fmt.Sprintf(format, args...))
}
