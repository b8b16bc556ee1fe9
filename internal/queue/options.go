package queue

import (
	"regexp"
	"strconv"
	"strings"
)

// arrayRe matches the array-range token: NAME=START:END or NAME=N.
var arrayRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(\d+)(?::(\d+))?$`)

// ParseArgs parses a raw dispatcher invocation:
//
//	[scheduler-flags] [NAME=START:END | NAME=N] <log-path> <command> [args...]
//
// Flags fall into three categories: pass-through scheduler flags ("-V" is
// boolean, any other single-dash flag consumes one value), the "-pe" flag
// which consumes an environment name plus a slot count, and double-dash
// abstract options consuming one value each, resolved later against the
// queue configuration. "--config" names the configuration file itself.
func ParseArgs(argv []string) (*JobRequest, error) {
	req := &JobRequest{}

	i := 0
	for i < len(argv) && strings.HasPrefix(argv[i], "-") {
		flag := argv[i]
		switch {
		case flag == "-V":
			req.Passthrough = append(req.Passthrough, "-V")
			i++

		case flag == "-sync":
			if i+1 >= len(argv) {
				return nil, NewUsageError("-sync requires a value (y or n)")
			}
			value := argv[i+1]
			req.Passthrough = append(req.Passthrough, "-sync", value)
			if strings.HasPrefix(strings.ToLower(value), "y") {
				req.Sync = true
			}
			i += 2

		case flag == "-pe":
			if i+2 >= len(argv) {
				return nil, NewUsageError("-pe requires an environment name and a slot count")
			}
			name, countStr := argv[i+1], argv[i+2]
			count, err := strconv.Atoi(countStr)
			if err != nil || count < 1 {
				return nil, NewUsageError("invalid -pe slot count %q", countStr)
			}
			req.PE = &ParallelEnv{Name: name, Slots: count}
			req.Passthrough = append(req.Passthrough, "-pe", name, countStr)
			i += 3

		case strings.HasPrefix(flag, "--"):
			if i+1 >= len(argv) {
				return nil, NewUsageError("option %s requires a value", flag)
			}
			// Dashes in abstract option names normalize to underscores so
			// --max-jobs-run and --max_jobs_run name the same option.
			name := strings.ReplaceAll(strings.TrimPrefix(flag, "--"), "-", "_")
			value := argv[i+1]
			if name == "config" {
				req.ConfPath = value
			} else {
				req.Abstract = append(req.Abstract, AbstractOpt{Name: name, Value: value})
			}
			i += 2

		default:
			// Generic pass-through flag with one value.
			if i+1 >= len(argv) {
				return nil, NewUsageError("flag %s requires a value", flag)
			}
			req.Passthrough = append(req.Passthrough, flag, argv[i+1])
			i += 2
		}
	}

	rest := argv[i:]

	if len(rest) > 0 {
		if array, err := parseArrayToken(rest[0]); err != nil {
			return nil, err
		} else if array != nil {
			req.Array = array
			rest = rest[1:]
			if len(rest) > 0 {
				if second, _ := parseArrayToken(rest[0]); second != nil {
					return nil, NewUsageError("only one array range may be given, got %q after %s=%d:%d",
						rest[0], array.Var, array.Start, array.End)
				}
			}
		}
	}

	if len(rest) < 2 {
		return nil, NewUsageError("expected <log-path> followed by a command")
	}

	logPath := rest[0]
	req.Command = rest[1:]

	varName := ""
	if req.Array != nil {
		varName = req.Array.Var
	}
	tmpl, err := NewLogTemplate(logPath, varName)
	if err != nil {
		return nil, err
	}
	req.Log = tmpl

	return req, nil
}

// parseArrayToken parses NAME=START:END (or NAME=N). Returns (nil, nil) for
// tokens that are not array ranges at all.
func parseArrayToken(tok string) (*ArraySpec, error) {
	m := arrayRe.FindStringSubmatch(tok)
	if m == nil {
		return nil, nil
	}
	start, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, NewUsageError("invalid array range %q", tok)
	}
	end := start
	if m[3] != "" {
		end, err = strconv.Atoi(m[3])
		if err != nil {
			return nil, NewUsageError("invalid array range %q", tok)
		}
	}
	if start > end {
		return nil, NewUsageError("array range %q is empty: start %d is after end %d", tok, start, end)
	}
	return &ArraySpec{Var: m[1], Start: start, End: end}, nil
}
