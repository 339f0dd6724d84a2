package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	gorillaWS "github.com/gorilla/websocket"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238"))

	runningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	startingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	stoppedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type botRow struct {
	Username    string `json:"username"`
	Status      string `json:"status"`
	CurrentTask string `json:"currentTask"`
	PID         *int   `json:"pid"`
}

type wsEnvelope struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Username string          `json:"username"`
	Task     string          `json:"task"`
}

type stateMsg []botRow

type taskMsg struct {
	Username string
	Task     string
}

type connectedMsg struct {
	conn *gorillaWS.Conn
	recv chan tea.Msg
}

type disconnectedMsg struct{ err error }

type model struct {
	wsURL string

	conn *gorillaWS.Conn
	recv chan tea.Msg

	bots      []botRow
	lastEvent string
	connected bool
	err       error
}

func (m model) Init() tea.Cmd {
	return connectCmd(m.wsURL)
}

// connectCmd dials the agent and starts the read pump. Messages flow
// through a channel so the pump survives across Update calls.
func connectCmd(wsURL string) tea.Cmd {
	return func() tea.Msg {
		conn, _, err := gorillaWS.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			return disconnectedMsg{err: err}
		}
		recv := make(chan tea.Msg, 16)
		go func() {
			defer close(recv)
			for {
				_, raw, err := conn.ReadMessage()
				if err != nil {
					recv <- disconnectedMsg{err: err}
					return
				}
				var env wsEnvelope
				if err := json.Unmarshal(raw, &env); err != nil {
					continue
				}
				switch env.Type {
				case "state":
					var rows []botRow
					if err := json.Unmarshal(env.Data, &rows); err == nil {
						recv <- stateMsg(rows)
					}
				case "task":
					recv <- taskMsg{Username: env.Username, Task: env.Task}
				}
			}
		}()
		return connectedMsg{conn: conn, recv: recv}
	}
}

func waitForMsg(recv chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-recv
		if !ok {
			return disconnectedMsg{}
		}
		return msg
	}
}

func retryCmd(wsURL string) tea.Cmd {
	return tea.Tick(3*time.Second, func(time.Time) tea.Msg {
		return connectCmd(wsURL)()
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.conn != nil {
				_ = m.conn.Close()
			}
			return m, tea.Quit
		}

	case connectedMsg:
		m.conn = msg.conn
		m.recv = msg.recv
		m.connected = true
		m.err = nil
		return m, waitForMsg(m.recv)

	case disconnectedMsg:
		m.connected = false
		m.conn = nil
		if msg.err != nil {
			m.err = msg.err
		}
		return m, retryCmd(m.wsURL)

	case stateMsg:
		m.bots = []botRow(msg)
		sort.Slice(m.bots, func(i, j int) bool { return m.bots[i].Username < m.bots[j].Username })
		return m, waitForMsg(m.recv)

	case taskMsg:
		m.lastEvent = fmt.Sprintf("%s  %s: %s", time.Now().Format("15:04:05"), msg.Username, msg.Task)
		for i := range m.bots {
			if m.bots[i].Username == msg.Username {
				m.bots[i].CurrentTask = msg.Task
			}
		}
		return m, waitForMsg(m.recv)
	}

	return m, nil
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "running":
		return runningStyle
	case "starting":
		return startingStyle
	default:
		return stoppedStyle
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("farm-top"))
	if m.connected {
		b.WriteString("  " + runningStyle.Render("connected"))
	} else if m.err != nil {
		b.WriteString("  " + stoppedStyle.Render("disconnected: "+m.err.Error()))
	} else {
		b.WriteString("  " + dimStyle.Render("connecting..."))
	}
	b.WriteString("\n\n")

	rows := []string{fmt.Sprintf("%-16s %-10s %-30s %s", "ACCOUNT", "STATUS", "TASK", "PID")}
	for _, bot := range m.bots {
		pid := "-"
		if bot.PID != nil {
			pid = fmt.Sprintf("%d", *bot.PID)
		}
		task := bot.CurrentTask
		if task == "" {
			task = "Idle"
		}
		rows = append(rows, fmt.Sprintf("%-16s %-10s %-30s %s",
			bot.Username, statusStyle(bot.Status).Render(fmt.Sprintf("%-10s", bot.Status)), task, pid))
	}
	if len(m.bots) == 0 {
		rows = append(rows, dimStyle.Render("no bots"))
	}
	b.WriteString(borderStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")
	if m.lastEvent != "" {
		b.WriteString(dimStyle.Render("last task event: "+m.lastEvent) + "\n")
	}
	b.WriteString(dimStyle.Render("q to quit") + "\n")
	return b.String()
}

func main() {
	agentURL := flag.String("agent", envOr("FARM_AGENT_URL", "http://localhost:3001"), "bot agent base URL")
	flag.Parse()

	u, err := url.Parse(*agentURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad agent url: %v\n", err)
		os.Exit(1)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	p := tea.NewProgram(model{wsURL: u.String()})
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
