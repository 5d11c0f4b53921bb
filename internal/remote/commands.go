package remote

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"hostpilot/internal/models"
)

type Action string

const (
	ActionShutdown         Action = "shutdown"
	ActionRestart          Action = "restart"
	ActionScheduleShutdown Action = "schedule-shutdown"
	ActionCancelShutdown   Action = "cancel-shutdown"
	ActionPing             Action = "ping"
)

var allActions = []Action{ActionShutdown, ActionRestart, ActionScheduleShutdown, ActionCancelShutdown, ActionPing}

// DefaultCommands maps {platform, action} to command text. Placeholders:
// {host}, {minutes}, {seconds}.
var DefaultCommands = map[string]map[Action]string{
	"linux": {
		ActionShutdown:         "shutdown -h now",
		ActionRestart:          "shutdown -r now",
		ActionScheduleShutdown: "shutdown -h +{minutes}",
		ActionCancelShutdown:   "shutdown -c",
		ActionPing:             "ping -c 1 -W 2 {host}",
	},
	"darwin": {
		ActionShutdown:         "sudo shutdown -h now",
		ActionRestart:          "sudo shutdown -r now",
		ActionScheduleShutdown: "sudo shutdown -h +{minutes}",
		ActionCancelShutdown:   "sudo killall shutdown",
		ActionPing:             "ping -c 1 -t 2 {host}",
	},
	"windows": {
		ActionShutdown:         "shutdown /s /t 0",
		ActionRestart:          "shutdown /r /t 0",
		ActionScheduleShutdown: "shutdown /s /t {seconds}",
		ActionCancelShutdown:   "shutdown /a",
		ActionPing:             "ping -n 1 -w 2000 {host}",
	},
}

type CommandTable struct {
	entries map[string]map[Action]string
}

// NewCommandTable validates that every platform key is a supported platform
// and every supported platform maps every action.
func NewCommandTable(entries map[string]map[Action]string) (*CommandTable, error) {
	for platform := range entries {
		if !models.IsSupportedPlatform(platform) {
			return nil, fmt.Errorf("command table: unsupported platform %q", platform)
		}
	}
	for _, platform := range models.SupportedPlatforms() {
		actions, ok := entries[platform]
		if !ok {
			return nil, fmt.Errorf("command table: platform %q has no commands", platform)
		}
		for _, a := range allActions {
			if strings.TrimSpace(actions[a]) == "" {
				return nil, fmt.Errorf("command table: %s/%s is empty", platform, a)
			}
		}
	}
	cp := make(map[string]map[Action]string, len(entries))
	for p, actions := range entries {
		cp[p] = make(map[Action]string, len(actions))
		for a, tpl := range actions {
			cp[p][a] = tpl
		}
	}
	return &CommandTable{entries: cp}, nil
}

type CommandArgs struct {
	Host    string
	Minutes int
}

// Render resolves the template for platform/action. ok is false on a lookup
// miss.
func (t *CommandTable) Render(platform string, action Action, args CommandArgs) (string, bool) {
	tpl, ok := t.entries[platform][action]
	if !ok {
		return "", false
	}
	r := strings.NewReplacer(
		"{host}", args.Host,
		"{minutes}", strconv.Itoa(args.Minutes),
		"{seconds}", strconv.Itoa(args.Minutes*60),
	)
	return r.Replace(tpl), true
}

// safeHost keeps shell metacharacters out of rendered commands.
func safeHost(h string) bool {
	if net.ParseIP(h) != nil {
		return true
	}
	if h == "" || len(h) > 253 {
		return false
	}
	for _, c := range h {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
		default:
			return false
		}
	}
	return true
}
