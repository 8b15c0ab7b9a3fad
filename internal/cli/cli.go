package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandDetect    Command = "detect"
	CommandTranslate Command = "translate"
	CommandLanguages Command = "languages"
	CommandSession   Command = "session"
	CommandListen    Command = "listen"
	CommandStop      Command = "stop"
	CommandCancel    Command = "cancel"
	CommandSpeak     Command = "speak"
	CommandSwap      Command = "swap"
	CommandClear     Command = "clear"
	CommandTarget    Command = "target"
	CommandStatus    Command = "status"
	CommandServe     Command = "serve"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

// arity describes the positional arguments a command accepts.
type arity int

const (
	argsNone arity = iota
	argsOptional
	argsExactlyOne
)

var validCommands = map[Command]arity{
	CommandDetect:    argsOptional,
	CommandTranslate: argsOptional,
	CommandLanguages: argsNone,
	CommandSession:   argsNone,
	CommandListen:    argsNone,
	CommandStop:      argsNone,
	CommandCancel:    argsNone,
	CommandSpeak:     argsOptional,
	CommandSwap:      argsNone,
	CommandClear:     argsNone,
	CommandTarget:    argsExactlyOne,
	CommandStatus:    argsNone,
	CommandServe:     argsNone,
	CommandDevices:   argsNone,
	CommandDoctor:    argsNone,
	CommandVersion:   argsNone,
	CommandHelp:      argsNone,
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Verbose    bool
	From       string
	To         string
	Args       []string
	ShowHelp   bool
}

// Text joins the positional arguments into one input string.
func (p Parsed) Text() string {
	return strings.TrimSpace(strings.Join(p.Args, " "))
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	sawCommand := false
	literal := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if literal || (sawCommand && !strings.HasPrefix(arg, "-")) {
			parsed.Args = append(parsed.Args, arg)
			continue
		}

		switch arg {
		case "--":
			if !sawCommand {
				return Parsed{}, errors.New("-- must follow a command")
			}
			literal = true
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
			sawCommand = true
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--config", "--from", "--to":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, fmt.Errorf("%s requires a value", arg)
			}
			switch arg {
			case "--config":
				parsed.ConfigPath = args[i]
			case "--from":
				parsed.From = args[i]
			case "--to":
				parsed.To = args[i]
			}
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			sawCommand = true
		}
	}

	switch validCommands[parsed.Command] {
	case argsNone:
		if len(parsed.Args) > 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", parsed.Command)
		}
	case argsExactlyOne:
		if len(parsed.Args) != 1 {
			return Parsed{}, fmt.Errorf("command %q takes exactly one argument", parsed.Command)
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--verbose] <command> [--from CODE] [--to CODE] [text...]

Commands:
  detect      Identify the language of text (arguments or stdin)
  translate   Translate text, detecting the source unless --from is set
  languages   List supported languages
  session     Start an interactive translation session on stdin
  listen      Translate one spoken utterance (stop with "stop")
  stop        Stop listening and translate the transcript
  cancel      Cancel listening and discard audio
  speak       Speak text, or the running session's translation
  swap        Swap the running session's input and translation
  clear       Clear the running session
  target      Set the running session's target language
  status      Print the running session state
  serve       Serve the HTTP and WebSocket API
  devices     List available input devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/voxlate/config.jsonc)
  --from CODE     Source language (skips detection)
  --to CODE       Target language (default: session.default_target)
  -v, --verbose   Log debug output to stderr
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
