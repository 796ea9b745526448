// scenetool is a CLI utility for inspecting and processing scene documents
// without opening a window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/Faultbox/physbox/internal/logger"
	"github.com/Faultbox/physbox/internal/physics"
	"github.com/Faultbox/physbox/internal/physics/cpengine"
	"github.com/Faultbox/physbox/internal/scene"
	"github.com/Faultbox/physbox/internal/simulation"
	"github.com/Faultbox/physbox/internal/stream"
)

// errUsage marks a command invoked with the wrong arguments.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	if lvl := os.Getenv("PHYSBOX_LOG"); lvl != "" {
		if err := logger.InitWithFileConfig(lvl, logger.FileConfig{}, true); err == nil {
			defer logger.Sync()
		}
	}

	command, rest := args[0], args[1:]
	var err error
	switch command {
	case "info":
		err = cmdInfo(rest, stdout)
	case "tree":
		err = cmdTree(rest, stdout)
	case "validate", "check":
		err = cmdValidate(rest, stdout)
	case "simulate", "sim":
		err = cmdSimulate(rest, stdout)
	case "convert":
		err = cmdConvert(rest, stdout)
	case "serve":
		err = cmdServe(rest, stdout)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		printUsage(stderr)
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `scenetool - physbox scene document utility

Usage:
  scenetool <command> [options]

Commands:
  info <scene.xml>                      Show object and joint counts
  tree <scene.xml>                      Print the object hierarchy
  validate <scene.xml>                  Load the scene and report skipped joints
  simulate [-steps N] [-dt S] [-o out.xml] <scene.xml>
                                        Step the scene and print final positions
  convert <in.xml> <out.xml>            Re-save a scene as UTF-8
  serve [-addr A] [-rate HZ] <scene.xml>
                                        Run the scene and stream snapshots over websocket

Set PHYSBOX_LOG=debug to see engine and loader logs.

Examples:
  scenetool info levels/tower.xml
  scenetool simulate -steps 600 -o settled.xml levels/tower.xml
  scenetool serve -addr :8080 levels/tower.xml`)
}

func open(path string) (*scene.Compound, *scene.LoadReport, physics.Engine, error) {
	eng := cpengine.New(cpengine.DefaultOptions())
	root, report, err := scene.LoadFile(path, eng)
	if err != nil {
		eng.Close()
		return nil, nil, nil, err
	}
	return root, report, eng, nil
}

func oneArg(args []string, name string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("%w: scenetool %s <scene.xml>", errUsage, name)
	}
	return args[0], nil
}

func cmdInfo(args []string, w io.Writer) error {
	path, err := oneArg(args, "info")
	if err != nil {
		return err
	}
	root, report, eng, err := open(path)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer root.Destroy()

	types := make(map[scene.Type]int)
	joints := make(map[scene.JointKind]int)
	depth := 0
	root.Walk(func(o scene.Object, d int) {
		types[o.Type()]++
		if d+1 > depth {
			depth = d + 1
		}
		if c, ok := o.(*scene.Compound); ok {
			for _, j := range c.Joints() {
				joints[j.Kind()]++
			}
		}
	})
	for _, j := range root.Joints() {
		joints[j.Kind()]++
	}

	lo, hi := root.Bounds()
	fmt.Fprintf(w, "Scene:   %s\n", path)
	fmt.Fprintf(w, "Objects: %d\n", report.Objects)
	fmt.Fprintf(w, "Joints:  %d\n", report.Joints)
	fmt.Fprintf(w, "Skipped: %d\n", len(report.Skipped))
	fmt.Fprintf(w, "Depth:   %d\n", depth)
	fmt.Fprintf(w, "Bounds:  (%v) - (%v)\n", lo, hi)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Objects by type:")
	for _, t := range scene.Types() {
		if n := types[t]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", t, n)
		}
	}
	if len(joints) > 0 {
		fmt.Fprintln(w, "Joints by kind:")
		for _, k := range []scene.JointKind{scene.KindHinge, scene.KindBallAndSocket, scene.KindBallAndSocketLimited} {
			if n := joints[k]; n > 0 {
				fmt.Fprintf(w, "  %-22s %d\n", k, n)
			}
		}
	}
	return nil
}

func cmdTree(args []string, w io.Writer) error {
	path, err := oneArg(args, "tree")
	if err != nil {
		return err
	}
	root, _, eng, err := open(path)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer root.Destroy()

	fmt.Fprintf(w, "compound (%s)\n", root.FreezeState())
	printJoints(w, root, 1)
	root.Walk(func(o scene.Object, d int) {
		indent := strings.Repeat("  ", d+1)
		fmt.Fprintf(w, "%s[%d] %s at (%v) %s\n", indent, o.ID(), o.Type(), o.Matrix().Position(), o.FreezeState())
		if c, ok := o.(*scene.Compound); ok {
			printJoints(w, c, d+2)
		}
	})
	return nil
}

func printJoints(w io.Writer, c *scene.Compound, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, j := range c.Joints() {
		parent := -1
		if p := j.Parent(); p != nil {
			parent = p.ID()
		}
		fmt.Fprintf(w, "%s%s %d -> %d pivot (%v)\n", indent, j.Kind(), parent, j.Child().ID(), j.Pivot())
	}
}

func cmdValidate(args []string, w io.Writer) error {
	path, err := oneArg(args, "validate")
	if err != nil {
		return err
	}
	root, report, eng, err := open(path)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer root.Destroy()

	for _, s := range report.Skipped {
		fmt.Fprintf(w, "line %d: %s %d -> %d skipped: %v\n", s.Line, s.Kind, s.ParentID, s.ChildID, s.Reason)
	}
	if n := len(report.Skipped); n > 0 {
		return fmt.Errorf("%s: %d joint(s) skipped", path, n)
	}
	fmt.Fprintf(w, "%s: ok (%d objects, %d joints)\n", path, report.Objects, report.Joints)
	return nil
}

func cmdSimulate(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(w)
	steps := fs.Int("steps", 300, "Number of fixed steps")
	dt := fs.Float64("dt", 1.0/60, "Step length in seconds")
	gravity := fs.Float64("gravity", -9.81, "Gravity along Y")
	out := fs.String("o", "", "Write the settled scene to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *steps < 0 {
		return fmt.Errorf("%w: scenetool simulate [-steps N] [-dt S] [-o out.xml] <scene.xml>", errUsage)
	}

	opts := cpengine.DefaultOptions()
	opts.Gravity = float32(*gravity)
	eng := cpengine.New(opts)
	sim, err := simulation.New(eng, simulation.Options{TimeStep: float32(*dt)})
	if err != nil {
		eng.Close()
		return err
	}
	defer sim.Close()

	if _, err := sim.Load(fs.Arg(0)); err != nil {
		return err
	}
	for i := 0; i < *steps; i++ {
		sim.Update(float32(*dt))
	}

	fmt.Fprintf(w, "Simulated %d steps of %gs\n", *steps, *dt)
	for _, n := range sim.Root().Nodes() {
		fmt.Fprintf(w, "  [%d] %-8s (%v)\n", n.ID(), n.Type(), n.Matrix().Position())
	}
	if *out != "" {
		if err := sim.Save(*out); err != nil {
			return err
		}
		fmt.Fprintf(w, "Saved %s\n", *out)
	}
	return nil
}

func cmdConvert(args []string, w io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: scenetool convert <in.xml> <out.xml>", errUsage)
	}
	root, report, eng, err := open(args[0])
	if err != nil {
		return err
	}
	defer eng.Close()
	defer root.Destroy()

	if err := scene.SaveFile(args[1], root); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s (%d objects, %d joints, %d skipped)\n",
		args[1], report.Objects, report.Joints, len(report.Skipped))
	return nil
}

func cmdServe(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(w)
	addr := fs.String("addr", ":8080", "Listen address")
	rate := fs.Int("rate", 60, "Ticks per second")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 || *rate <= 0 {
		return fmt.Errorf("%w: scenetool serve [-addr A] [-rate HZ] <scene.xml>", errUsage)
	}

	eng := cpengine.New(cpengine.DefaultOptions())
	sim, err := simulation.New(eng, simulation.Options{TimeStep: 1.0 / float32(*rate)})
	if err != nil {
		eng.Close()
		return err
	}
	defer sim.Close()
	if _, err := sim.Load(fs.Arg(0)); err != nil {
		return err
	}

	hub := stream.NewHub()
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var listenErr error
	stopped := make(chan struct{})
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			listenErr = err
		}
		close(stopped)
	}()
	fmt.Fprintf(w, "Streaming %s on ws://%s/ws\n", fs.Arg(0), *addr)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stopped:
			cancel()
		case <-runCtx.Done():
		}
	}()
	frames, err := stream.Run(runCtx, sim, hub, time.Second/time.Duration(*rate))

	hub.Close()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if shutdownErr := srv.Shutdown(shutdownCtx); err == nil {
		err = shutdownErr
	}
	<-stopped
	if err == nil {
		err = listenErr
	}
	fmt.Fprintf(w, "Stopped after %d ticks\n", frames)
	return err
}
