package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ryandielhenn/convoy/internal/logging"
	"github.com/ryandielhenn/convoy/pkg/agent"
	"github.com/ryandielhenn/convoy/pkg/gossip"
	"github.com/ryandielhenn/convoy/pkg/motion"
	"github.com/ryandielhenn/convoy/pkg/operator"
	"github.com/ryandielhenn/convoy/pkg/sim"
)

type options struct {
	agents   int
	spacing  float64
	ticks    int
	loss     float64
	rangeLim float64
	seed     int64
	radius   float64
	points   int
	logLevel string
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

// run lines the agents up, lets the operator take a roll-call, sends a circle
// and ticks until the fleet is idle or the tick budget runs out.
func run(args []string, out io.Writer) error {
	var o options
	flags := pflag.NewFlagSet("convoy-fleetsim", pflag.ContinueOnError)
	flags.IntVarP(&o.agents, "agents", "n", 4, "agents in the fleet")
	flags.Float64Var(&o.spacing, "spacing", 0.5, "distance between neighbouring agents")
	flags.IntVar(&o.ticks, "ticks", 5000, "tick budget")
	flags.Float64Var(&o.loss, "loss", 0, "datagram loss probability")
	flags.Float64Var(&o.rangeLim, "range", 0, "radio range, 0 = unlimited")
	flags.Int64Var(&o.seed, "seed", 1, "medium random seed")
	flags.Float64Var(&o.radius, "radius", 1.5, "circle radius")
	flags.IntVar(&o.points, "points", 10, "circle points")
	flags.StringVar(&o.logLevel, "log-level", "warn", "log level")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if o.agents <= 0 || o.ticks <= 0 {
		return fmt.Errorf("--agents and --ticks must be positive")
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = o.logLevel
	logging.ApplyEnv(&logCfg)
	logger, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	mediumOpts := []gossip.MediumOption{gossip.WithSeed(o.seed)}
	if o.loss > 0 {
		mediumOpts = append(mediumOpts, gossip.WithLoss(o.loss))
	}
	if o.rangeLim > 0 {
		mediumOpts = append(mediumOpts, gossip.WithRange(o.rangeLim))
	}
	fleet := sim.New(
		sim.WithParams(agent.DefaultParams()),
		sim.WithMedium(mediumOpts...),
		sim.WithLogger(logger),
	)
	for i := range o.agents {
		fleet.AddAgent(fmt.Sprintf("agent%02d", i), motion.Coordinate{X: float64(i) * o.spacing})
	}
	console := fleet.AddOperator("remote")

	started := time.Now()
	fleet.Step()
	console.BeginRollCall()
	fleet.Run(agent.DefaultParams().RollCallSettleTicks * 3)

	goals := operator.Circle(motion.Coordinate{}, o.radius, o.points)
	console.Path(goals)
	_, idle := fleet.RunUntil(o.ticks, func(f *sim.Fleet) bool {
		return console.Queued() == 0 && f.Idle() && anyVisits(f)
	})
	elapsed := time.Since(started)

	sent, delivered, lost := fleet.Medium().Stats()
	logger.Info("simulation finished", zap.Int("ticks", fleet.Ticks()), zap.Bool("idle", idle))

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Agent", "Status", "Position", "Visits", "Roster"})
	for _, s := range fleet.Snapshots() {
		r, _ := fleet.Robot(s.ID)
		table.Append([]string{s.ID, s.Status, r.Position().String(), strconv.Itoa(len(r.Visits())), strconv.Itoa(len(s.Roster))})
	}
	table.Render()
	fmt.Fprintf(out, "goals %d, ticks %d in %s, idle %v\n", len(goals), fleet.Ticks(), elapsed.Round(time.Millisecond), idle)
	fmt.Fprintf(out, "datagrams sent %d, delivered %d, lost %d (%.1f%%)\n", sent, delivered, lost, percent(lost, delivered+lost))
	return nil
}

func anyVisits(f *sim.Fleet) bool {
	for _, id := range f.IDs() {
		if r, ok := f.Robot(id); ok && len(r.Visits()) > 0 {
			return true
		}
	}
	return false
}

func percent(part, whole uint64) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
