package args

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"path/filepath"
	"strconv"
	"time"

	"portscan/types"
)

// ErrUsage is returned by Load after it has printed the usage text, either
// because help was requested or because no address was given.
var ErrUsage = errors.New("usage requested")

type options struct {
	threads  string
	timeout  time.Duration
	syn      bool
	iface    string
	config   string
	verbose  bool
	explicit map[string]bool
}

func newFlagSet(program string, opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&opts.threads, "j", strconv.Itoa(types.DefaultWorkers),
		"number of `THREADS` to use for concurrent scanning")
	fs.DurationVar(&opts.timeout, "t", types.DefaultTimeout,
		"per-port connection timeout")
	fs.BoolVar(&opts.syn, "s", false,
		"perform a TCP SYN (half-open) scan, requires root")
	fs.StringVar(&opts.iface, "i", "",
		"capture interface for SYN scans (e.g. -i eth0)")
	fs.StringVar(&opts.config, "c", "",
		"read defaults from a YAML config `file`")
	fs.BoolVar(&opts.verbose, "v", false,
		"verbose logging on stderr")
	return fs
}

// Load parses argv (argv[0] is the program name) into a ScanConfig. Flags may
// come before or after the address. Precedence is defaults, then the config
// file given with -c, then flags set on the command line.
func Load(argv []string, out io.Writer) (types.ScanConfig, error) {
	program := "portscan"
	if len(argv) > 0 {
		program = filepath.Base(argv[0])
		argv = argv[1:]
	}

	opts := options{explicit: make(map[string]bool)}
	fs := newFlagSet(program, &opts)

	var free []string
	for {
		if err := fs.Parse(argv); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				printUsage(out, fs)
				return types.ScanConfig{}, ErrUsage
			}
			return types.ScanConfig{}, fmt.Errorf("error parsing options: %v", err)
		}
		if fs.NArg() == 0 {
			break
		}
		free = append(free, fs.Arg(0))
		argv = fs.Args()[1:]
	}
	fs.Visit(func(f *flag.Flag) { opts.explicit[f.Name] = true })

	if len(free) == 0 {
		printUsage(out, fs)
		return types.ScanConfig{}, ErrUsage
	}
	if len(free) > 1 {
		return types.ScanConfig{}, fmt.Errorf("error parsing options: unexpected argument %q", free[1])
	}

	addr, err := ParseAddr(free[0])
	if err != nil {
		return types.ScanConfig{}, err
	}
	cfg := types.DefaultScanConfig(addr)

	if opts.config != "" {
		file, err := LoadConfig(opts.config)
		if err != nil {
			return types.ScanConfig{}, err
		}
		if err := file.apply(&cfg); err != nil {
			return types.ScanConfig{}, fmt.Errorf("config %s: %w", opts.config, err)
		}
	}

	if err := opts.apply(&cfg); err != nil {
		return types.ScanConfig{}, err
	}
	return cfg, nil
}

func (o *options) apply(cfg *types.ScanConfig) error {
	if o.explicit["j"] {
		n, err := ParseThreads(o.threads)
		if err != nil {
			return err
		}
		cfg.Workers = n
	}
	if o.explicit["t"] {
		if o.timeout <= 0 {
			return fmt.Errorf("flag '-t' must be a positive duration, got %s", o.timeout)
		}
		cfg.Timeout = o.timeout
	}
	if o.explicit["s"] {
		cfg.Mode = types.Connect
		if o.syn {
			cfg.Mode = types.SYN
		}
	}
	if o.explicit["i"] {
		cfg.Interface = o.iface
	}
	if o.explicit["v"] {
		cfg.Verbose = o.verbose
	}
	return nil
}

// ParseAddr parses an IPv4 or IPv6 literal.
func ParseAddr(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("could not parse %s as an IP address", s)
	}
	return addr, nil
}

// ParseThreads parses a worker count, which must be a positive integer.
func ParseThreads(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("flag '-j' must be a positive integer, got %q", s)
	}
	return n, nil
}

func printUsage(out io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(out, "Usage: %s -j THREADS IPADDR\n\nOptions:\n", fs.Name())
	fs.SetOutput(out)
	fs.PrintDefaults()
	fs.SetOutput(io.Discard)
}
