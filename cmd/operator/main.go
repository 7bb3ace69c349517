package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/discovery"
	"github.com/ryandielhenn/convoy/internal/config"
	"github.com/ryandielhenn/convoy/internal/logging"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
	"github.com/ryandielhenn/convoy/pkg/operator"
)

const usage = `usage: convoy-operator [flags] <command> [args]

commands:
  roster                     print the agents heard while listening
  goto X:Y                   send one goal to the first free agent
  path X:Y [X:Y ...]         send a path to the first free agent
  circle                     send --points goals on a circle (--center, --radius)
  stop                       flood STOP
  rollcall [begin|end]       start or end a roll-call round
  snapshot [ID ...]          publish a roster snapshot (ids from etcd when none given)
  positions                  ask every agent for its position
  status [ID]                ask one agent, or everybody, for its status

flags:
`

type options struct {
	cfgPath string
	id      string
	listen  time.Duration
	linger  time.Duration
	center  string
	radius  float64
	points  int
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

func run(args []string, out io.Writer) error {
	var opts options
	flags := pflag.NewFlagSet("convoy-operator", pflag.ContinueOnError)
	flags.StringVarP(&opts.cfgPath, "config", "c", "", "TOML config file")
	flags.StringVar(&opts.id, "id", "remote", "operator id")
	flags.DurationVar(&opts.listen, "listen", time.Second, "how long to listen before acting")
	flags.DurationVar(&opts.linger, "linger", time.Second, "how long to keep ticking after acting")
	flags.StringVar(&opts.center, "center", "0:0", "circle center x:y")
	flags.Float64Var(&opts.radius, "radius", 1.5, "circle radius")
	flags.IntVar(&opts.points, "points", 10, "circle points")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return fmt.Errorf("missing command")
	}

	cfg := config.Default()
	if opts.cfgPath != "" {
		var err error
		if cfg, err = config.Load(opts.cfgPath); err != nil {
			return err
		}
	} else {
		config.ApplyEnv(&cfg)
	}
	cfg.ID = opts.id
	cfg.Role = "operator"
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tr, err := gossip.ListenUDP(cfg.UDP(), logger)
	if err != nil {
		return err
	}
	defer tr.Close()

	console := operator.NewConsole(gossip.NodeID(cfg.ID), tr, operator.Config{
		LivenessTimeout: cfg.Protocol.LivenessTimeoutTicks,
		FixCapacity:     operator.DefaultConfig().FixCapacity,
		FixTTL:          operator.DefaultConfig().FixTTL,
	}, logger)

	tick := func(d time.Duration) {
		deadline := time.Now().Add(d)
		for time.Now().Before(deadline) {
			console.Tick()
			time.Sleep(cfg.Protocol.Tick)
		}
		console.Tick()
	}

	cmd, rest := flags.Arg(0), flags.Args()[1:]
	tick(opts.listen)
	logger.Debug("listened", zap.Int("agents", len(console.Roster())), zap.String("first_free", string(console.FirstFree())))

	switch cmd {
	case "roster":
		printRoster(out, console)
		return nil
	case "goto":
		if len(rest) != 1 {
			return fmt.Errorf("goto takes one X:Y")
		}
		c, err := motion.ParseCoordinate(rest[0])
		if err != nil {
			return err
		}
		console.GoTo(c)
	case "path":
		coords, err := parseCoords(rest)
		if err != nil {
			return err
		}
		console.Path(coords)
	case "circle":
		center, err := motion.ParseCoordinate(opts.center)
		if err != nil {
			return fmt.Errorf("--center: %w", err)
		}
		console.Path(operator.Circle(center, opts.radius, opts.points))
	case "stop":
		console.Stop()
	case "rollcall":
		if len(rest) > 0 && rest[0] == "end" {
			console.EndRollCall()
		} else {
			console.BeginRollCall()
		}
	case "snapshot":
		ids, err := snapshotIDs(cfg, rest, logger)
		if err != nil {
			return err
		}
		if err := console.PublishSnapshot(ids); err != nil {
			return err
		}
	case "positions":
		console.RequestPositions()
		tick(opts.linger)
		printFixes(out, console)
		return nil
	case "status":
		var id gossip.NodeID
		if len(rest) > 0 {
			id = gossip.NodeID(rest[0])
		}
		console.RequestStatus(id)
		tick(opts.linger)
		printRoster(out, console)
		return nil
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	tick(opts.linger)
	if n := console.Queued(); n > 0 {
		return fmt.Errorf("%d goals never left: no free agent heard", n)
	}
	return nil
}

func parseCoords(args []string) ([]motion.Coordinate, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("path needs at least one X:Y")
	}
	out := make([]motion.Coordinate, 0, len(args))
	for _, a := range args {
		c, err := motion.ParseCoordinate(a)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func snapshotIDs(cfg config.Config, args []string, logger *zap.Logger) ([]gossip.NodeID, error) {
	names := args
	if len(names) == 0 {
		if len(cfg.Etcd.Endpoints) == 0 {
			return nil, fmt.Errorf("snapshot needs ids or etcd endpoints")
		}
		cli, err := discovery.NewClient(cfg.Etcd.Endpoints, logger.Named("etcd"))
		if err != nil {
			return nil, err
		}
		defer cli.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		regs, err := discovery.LoadRoster(ctx, cli, cfg.Etcd.Prefix)
		if err != nil {
			return nil, err
		}
		names = discovery.IDs(regs)
	}
	ids := make([]gossip.NodeID, 0, len(names))
	for _, n := range names {
		ids = append(ids, gossip.NodeID(strings.TrimSpace(n)))
	}
	return ids, nil
}

func printRoster(out io.Writer, c *operator.Console) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Agent", "Status", "Silent ticks"})
	for _, m := range c.Roster() {
		table.Append([]string{string(m.ID), m.Status.String(), strconv.Itoa(m.SilenceTicks)})
	}
	table.SetFooter([]string{"first free", string(c.FirstFree()), ""})
	table.Render()
}

func printFixes(out io.Writer, c *operator.Console) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Agent", "Position", "At"})
	for _, f := range c.Fixes() {
		table.Append([]string{string(f.Agent), f.Position.String(), f.At.Format(time.RFC3339)})
	}
	table.Render()
}
