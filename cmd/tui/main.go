package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"valerie/internal/chatclient"
	"valerie/internal/tui"
)

func main() {
	var (
		server string
		name   string
		visits int
		voice  bool
	)
	flag.StringVar(&server, "server", "http://localhost:3000", "Valerie server base URL")
	flag.StringVar(&name, "name", "", "Display name used in the greeting")
	flag.IntVar(&visits, "visits", 1, "Visit counter; above 1 greets as a returning visitor")
	flag.BoolVar(&voice, "voice", false, "Start with voice output on")
	flag.Parse()

	transport, err := chatclient.NewHTTPTransport(server, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create transport: %v\n", err)
		os.Exit(1)
	}
	session, err := chatclient.NewSession(transport, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create session: %v\n", err)
		os.Exit(1)
	}
	if !voice {
		session.ToggleVoice()
	}
	session.Greet(name, visits)

	p := tea.NewProgram(tui.New(context.Background(), session, transport), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
