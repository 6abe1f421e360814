package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"reflow_oven"
	"reflow_oven/internal/engine"
	"reflow_oven/internal/logger"
)

// CommandKind classifies a parsed operator command.
type CommandKind int

const (
	CmdWatchdog CommandKind = iota
	CmdMode
	CmdProfile
	CmdTarget
	CmdReboot
	CmdCurrentTemperature
)

// Command is one parsed text command.
type Command struct {
	Kind    CommandKind
	Mode    engine.Mode
	Profile string
	Target  float64
}

var modeCommands = map[string]engine.Mode{
	"ON":         engine.ModeOn,
	"OFF":        engine.ModeOff,
	"REFLOW":     engine.ModeReflow,
	"TARGET_PID": engine.ModeTargetPID,
	"CALIBRATE":  engine.ModeCalibrate,
	"COOLDOWN":   engine.ModeCalibrateCool,
}

const (
	profilePrefix = "profile:"
	targetPrefix  = "target:"
)

// ParseCommand parses a text frame. ok is false for unknown or malformed input.
func ParseCommand(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	switch text {
	case "WATCHDOG":
		return Command{Kind: CmdWatchdog}, true
	case "REBOOT":
		return Command{Kind: CmdReboot}, true
	case "CURRENT-TEMPERATURE":
		return Command{Kind: CmdCurrentTemperature}, true
	}
	if m, ok := modeCommands[text]; ok {
		return Command{Kind: CmdMode, Mode: m}, true
	}
	if name, ok := strings.CutPrefix(text, profilePrefix); ok {
		if name == "" {
			return Command{}, false
		}
		return Command{Kind: CmdProfile, Profile: name}, true
	}
	if raw, ok := strings.CutPrefix(text, targetPrefix); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return Command{}, false
		}
		return Command{Kind: CmdTarget, Target: float64(n)}, true
	}
	return Command{}, false
}

// SettingsSaver persists the operator selection. It must not block.
type SettingsSaver interface {
	SaveSettings(profile string, target float64)
}

// CommandReceiver executes operator commands on the engine goroutine.
type CommandReceiver struct {
	runner   *Runner
	settings SettingsSaver
	reboot   func()
	log      *logger.Logger
}

// NewCommandReceiver builds a receiver. settings and reboot may be nil.
func NewCommandReceiver(runner *Runner, settings SettingsSaver, reboot func(), log *logger.Logger) *CommandReceiver {
	return &CommandReceiver{runner: runner, settings: settings, reboot: reboot, log: log}
}

// Execute parses and applies text. It returns the acknowledgement for the requesting
// client, or nil when the command has none. Unknown commands are ignored without error.
func (c *CommandReceiver) Execute(ctx context.Context, text string) (any, error) {
	cmd, ok := ParseCommand(text)
	if !ok {
		if c.log != nil {
			c.log.Debugw("command_ignored", "text", text)
		}
		return nil, nil
	}

	var ack any
	var save bool
	var profile string
	var target float64

	err := c.runner.Do(ctx, func(e *engine.Engine, now time.Time) {
		e.WatchdogPing(now)
		switch cmd.Kind {
		case CmdWatchdog:
		case CmdMode:
			e.SetMode(now, cmd.Mode)
		case CmdProfile:
			ack = reflow_oven.ProfileAck{Profile: e.SetProfile(cmd.Profile)}
			save = true
		case CmdTarget:
			ack = reflow_oven.TargetAck{Target: e.SetTarget(cmd.Target)}
			save = true
		case CmdCurrentTemperature:
			e.ReportTemperature(now)
		case CmdReboot:
			e.SetMode(now, engine.ModeOff)
		}
		if save {
			s := e.Snapshot()
			profile, target = s.Profile, s.Target
		}
	})
	if err != nil {
		return nil, err
	}

	if save && c.settings != nil {
		c.settings.SaveSettings(profile, target)
	}
	if cmd.Kind == CmdReboot && c.reboot != nil {
		if c.log != nil {
			c.log.Warnw("reboot_requested")
		}
		c.reboot()
	}
	return ack, nil
}
