package queue

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pineking/kaldi-git/internal/utils"
)

// placeholder referenced by translation templates; replaced with the value
// the caller supplied for the option.
const confPlaceholder = "$0"

// QueueConf is the parsed site policy mapping abstract resource options to
// concrete scheduler flags. Returned as a value from a pure parse; never a
// process-wide singleton.
type QueueConf struct {
	Source       string // file path, or "built-in" for the fallback policy
	StandardOpts []string

	defaults     map[string]string
	defaultOrder []string
	exact        map[string]string // "name=value" -> template
	wild         map[string]string // name -> template
}

// Defaults returns the declared default options in declaration order.
func (c *QueueConf) Defaults() []AbstractOpt {
	out := make([]AbstractOpt, 0, len(c.defaultOrder))
	for _, name := range c.defaultOrder {
		out = append(out, AbstractOpt{Name: name, Value: c.defaults[name]})
	}
	return out
}

// Rules returns every translation rule, exact rules before wildcards, for
// inspection output.
func (c *QueueConf) Rules() []string {
	out := make([]string, 0, len(c.exact)+len(c.wild))
	for key, tmpl := range c.exact {
		out = append(out, strings.TrimSpace(key+" "+tmpl))
	}
	for name, tmpl := range c.wild {
		out = append(out, strings.TrimSpace(name+"=* "+tmpl))
	}
	return out
}

// ParseConf parses the line-oriented queue configuration grammar:
//
//	standard_opts <verbatim flags>   appended to every submission
//	default VAR=VALUE                default for an unsupplied option
//	VAR=VALUE [template]             exact-value translation
//	VAR=* <template>                 wildcard translation, $0 = the value
//
// "#" starts a comment; blank lines are ignored.
func ParseConf(r io.Reader, source string) (*QueueConf, error) {
	conf := &QueueConf{
		Source:   source,
		defaults: make(map[string]string),
		exact:    make(map[string]string),
		wild:     make(map[string]string),
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := utils.StripInlineComment(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)

		switch {
		case fields[0] == "standard_opts":
			conf.StandardOpts = append(conf.StandardOpts, fields[1:]...)

		case fields[0] == "default":
			if len(fields) != 2 {
				return nil, &ConfigError{Path: source, Line: lineNo,
					Reason: "default takes exactly one VAR=VALUE argument"}
			}
			name, value, ok := strings.Cut(fields[1], "=")
			if !ok || name == "" {
				return nil, &ConfigError{Path: source, Line: lineNo,
					Reason: "malformed default directive, expected VAR=VALUE"}
			}
			if _, dup := conf.defaults[name]; !dup {
				conf.defaultOrder = append(conf.defaultOrder, name)
			}
			conf.defaults[name] = value

		case strings.Contains(fields[0], "="):
			name, value, _ := strings.Cut(fields[0], "=")
			if name == "" {
				return nil, &ConfigError{Path: source, Line: lineNo,
					Reason: "malformed rule, expected VAR=VALUE or VAR=*"}
			}
			template := strings.Join(fields[1:], " ")
			if value == "*" {
				if template == "" {
					return nil, &ConfigError{Path: source, Line: lineNo,
						Reason: "wildcard rule requires a template"}
				}
				conf.wild[name] = template
			} else {
				conf.exact[fields[0]] = template
			}

		default:
			return nil, &ConfigError{Path: source, Line: lineNo,
				Reason: "unrecognized directive " + strconv.Quote(fields[0])}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ConfigError{Path: source, Reason: err.Error()}
	}

	return conf, nil
}

// LoadConf reads a queue configuration file. A missing file falls back to the
// built-in default policy so the dispatcher stays usable on sites without a
// config. A path that was requested explicitly must exist; a missing file is
// then a hard error.
func LoadConf(path string, explicit bool) (*QueueConf, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			utils.PrintDebug("queue config %s not found, using built-in policy", path)
			return DefaultConf(), nil
		}
		return nil, &ConfigError{Path: path, Reason: err.Error()}
	}
	defer file.Close()

	return ParseConf(file, path)
}

// builtinConf mirrors a conventional Grid Engine site policy: memory requests
// become mem_free/ram_free reservations, thread counts become a smp parallel
// environment, GPU requests select the GPU queue.
const builtinConf = `
standard_opts -v PATH -cwd -S /bin/bash -j y -l arch=*64*
default gpu=0
mem=* -l mem_free=$0,ram_free=$0
mem=0
num_threads=* -pe smp $0
num_threads=1
max_jobs_run=* -tc $0
gpu=0
gpu=* -l gpu=$0 -q g.q
`

// DefaultConf returns the built-in fallback policy.
func DefaultConf() *QueueConf {
	conf, err := ParseConf(strings.NewReader(builtinConf), "built-in")
	if err != nil {
		panic("built-in queue config does not parse: " + err.Error())
	}
	return conf
}

// Resolve merges the request's pass-through flags and abstract options with
// this configuration into a SubmissionOptions value. Every abstract option
// must match an exact-value rule or, failing that, a wildcard rule.
func (c *QueueConf) Resolve(req *JobRequest) (SubmissionOptions, error) {
	flags := append([]string{}, c.StandardOpts...)
	flags = append(flags, req.Passthrough...)

	// CLI options first (in given order), then config defaults for options
	// the caller did not supply.
	given := make(map[string]bool, len(req.Abstract))
	merged := make([]AbstractOpt, 0, len(req.Abstract)+len(c.defaultOrder))
	for _, opt := range req.Abstract {
		given[opt.Name] = true
		merged = append(merged, opt)
	}
	for _, name := range c.defaultOrder {
		if !given[name] {
			merged = append(merged, AbstractOpt{Name: name, Value: c.defaults[name]})
		}
	}

	var bindings []Binding
	for _, opt := range merged {
		template, ok := c.exact[opt.Name+"="+opt.Value]
		if !ok {
			template, ok = c.wild[opt.Name]
			if !ok {
				return SubmissionOptions{}, &ConfigError{Path: c.Source,
					Reason: "option " + opt.Name + "=" + opt.Value + " not described in config"}
			}
		}
		expanded := strings.ReplaceAll(template, confPlaceholder, opt.Value)
		if expanded != "" {
			flags = append(flags, strings.Fields(expanded)...)
		}
		bindings = append(bindings, Binding{Name: opt.Name, Value: opt.Value, Flags: expanded})
		utils.PrintDebug("resolved option --%s %s -> %q", opt.Name, opt.Value, expanded)
	}

	numThreads := 1
	if req.PE != nil {
		numThreads = req.PE.Slots
	}
	for _, opt := range req.Abstract {
		if opt.Name == "num_threads" {
			n, err := strconv.Atoi(opt.Value)
			if err != nil || n < 1 {
				return SubmissionOptions{}, NewUsageError("invalid --num-threads value %q", opt.Value)
			}
			numThreads = n
		}
	}

	return SubmissionOptions{
		Flags:      flags,
		Bindings:   bindings,
		NumThreads: numThreads,
	}, nil
}
