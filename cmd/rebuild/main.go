// Command rebuild reconstructs an all-atom trajectory from a coarse-grained
// one by running the external cgback tool on every frame and reassembling
// the results into DCD segment files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/pinak2299/cgback/internal/cgback"
	"github.com/pinak2299/cgback/internal/config"
	"github.com/pinak2299/cgback/internal/rebuild"
	"github.com/pinak2299/cgback/internal/runlog"
	"github.com/pinak2299/cgback/internal/staging"
	"github.com/pinak2299/cgback/internal/trajio"
)

// version is set at build time.
var version = "dev"

type cliFlags struct {
	Traj       string
	Top        string
	Device     string
	GPU        int
	BatchSize  int
	Workers    int
	FramesDir  string
	OutputsDir string
	OutputDir  string
	DataDir    string
	CgbackBin  string
	ConfigPath string
	Status     bool
	MergeOut   string
	Version    bool
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	var flags cliFlags
	def := config.Default()

	fs := flag.NewFlagSet("rebuild", flag.ContinueOnError)
	fs.StringVar(&flags.Traj, "traj", "", "input coarse-grained DCD trajectory file")
	fs.StringVar(&flags.Top, "top", "", "input PDB topology file")
	fs.StringVar(&flags.Device, "device", def.Device, "device kind for cgback (cuda, cpu)")
	fs.IntVar(&flags.GPU, "gpu", def.GPUIndex, "GPU device number to use")
	fs.IntVar(&flags.BatchSize, "batch-size", def.BatchSize, "frames per batch segment")
	fs.IntVar(&flags.Workers, "workers", def.Workers, "max concurrent cgback processes")
	fs.StringVar(&flags.FramesDir, "frames-dir", def.FramesDir, "staging directory for per-frame input PDB files")
	fs.StringVar(&flags.OutputsDir, "outputs-dir", def.OutputsDir, "staging directory for cgback output PDB files")
	fs.StringVar(&flags.OutputDir, "out-dir", def.OutputDir, "directory for rebuilt segment files")
	fs.StringVar(&flags.DataDir, "data-dir", def.DataDir, "directory for the runlog database")
	fs.StringVar(&flags.CgbackBin, "cgback", def.CgbackBin, "cgback executable name or path")
	fs.StringVar(&flags.ConfigPath, "config", "config.json", "JSON config file (optional)")
	fs.BoolVar(&flags.Status, "status", false, "list recorded runs and exit")
	fs.StringVar(&flags.MergeOut, "merge", "", "merge existing segments of -traj into this file and exit")
	fs.BoolVar(&flags.Version, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if flags.Version {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	applyFlags(&cfg, fs, flags)
	if asked := cfg.Workers; cfg.ClampWorkers() {
		log.Printf("capping workers at %d (requested %d): the GPU can't take more", cfg.Workers, asked)
	}

	if flags.Status {
		return printStatus(cfg)
	}
	if flags.MergeOut != "" {
		return mergeSegments(cfg, flags.Traj, flags.MergeOut)
	}

	if flags.Traj == "" || flags.Top == "" {
		return fmt.Errorf("both -traj and -top are required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	return rebuildRun(ctx, cfg, flags.Traj, flags.Top)
}

// applyFlags overrides config values with flags that were set explicitly
// on the command line.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, flags cliFlags) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = flags.Device
		case "gpu":
			cfg.GPUIndex = flags.GPU
		case "batch-size":
			cfg.BatchSize = flags.BatchSize
		case "workers":
			cfg.Workers = flags.Workers
		case "frames-dir":
			cfg.FramesDir = flags.FramesDir
		case "outputs-dir":
			cfg.OutputsDir = flags.OutputsDir
		case "out-dir":
			cfg.OutputDir = flags.OutputDir
		case "data-dir":
			cfg.DataDir = flags.DataDir
		case "cgback":
			cfg.CgbackBin = flags.CgbackBin
		}
	})
}

func rebuildRun(ctx context.Context, cfg config.Config, trajPath, topPath string) error {
	start := time.Now()

	coarse, err := trajio.LoadCoarse(trajPath, topPath)
	if err != nil {
		return err
	}
	log.Printf("loaded %s: %d frames, %d coarse particles", trajPath, coarse.FrameCount(), coarse.NAtoms())

	driver := &rebuild.Driver{
		Rebuilder: cgback.NewRunner(cfg.CgbackBin, cfg.DeviceSelector(), cfg.VisibleDevices, cfg.MaxFixIterations),
		Dirs:      staging.New(cfg.FramesDir, cfg.OutputsDir),
		BatchSize: cfg.BatchSize,
		Workers:   cfg.Workers,
		TrajPath:  trajPath,
		OutputDir: cfg.OutputDir,
	}

	// The runlog is bookkeeping; a broken database shouldn't stop the
	// reconstruction itself.
	var store *runlog.Store
	var runID int64
	if store, err = runlog.Open(cfg.DataDir); err != nil {
		log.Printf("runlog disabled: %v", err)
		store = nil
	} else {
		defer store.Close()
		runID, err = store.CreateRun(runlog.Run{
			TrajFile:    trajPath,
			TopFile:     topPath,
			Device:      cfg.DeviceSelector(),
			TotalFrames: coarse.FrameCount(),
			BatchSize:   cfg.BatchSize,
			Workers:     cfg.Workers,
		})
		if err != nil {
			log.Printf("runlog disabled: %v", err)
			store.Close()
			store = nil
		} else {
			driver.Recorder = store.Recorder(runID)
		}
	}

	sum, err := driver.Run(ctx, coarse)
	if store != nil {
		status := runlog.StatusCompleted
		if err != nil {
			status = runlog.StatusFailed
		}
		if uerr := store.UpdateRunStatus(runID, status); uerr != nil {
			log.Printf("failed to update run status: %v", uerr)
		}
	}
	if err != nil {
		return err
	}

	log.Printf("done: %d segments, %d failed frames, %s elapsed",
		len(sum.Segments), sum.Failed, time.Since(start).Round(time.Millisecond))
	return nil
}

func printStatus(cfg config.Config) error {
	store, err := runlog.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run %d  %s  %s  frames=%d batch=%d workers=%d device=%s  %s\n",
			r.ID, r.Status, r.TrajFile, r.TotalFrames, r.BatchSize, r.Workers, r.Device,
			r.CreatedTime.Format(time.RFC3339))
		segs, err := store.ListSegments(r.ID)
		if err != nil {
			return err
		}
		for _, s := range segs {
			fmt.Printf("  segment [%d,%d]  %s  written=%d missing=%d\n",
				s.StartFrame, s.EndFrame, s.Filename, s.FramesWritten, s.Missing)
		}
	}
	return nil
}

func mergeSegments(cfg config.Config, trajPath, outPath string) error {
	if trajPath == "" {
		return fmt.Errorf("-merge requires -traj to locate segment files")
	}
	segs, err := trajio.FindSegments(cfg.OutputDir, trajPath)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("no segments found for %s in %s", trajPath, cfg.OutputDir)
	}
	n, err := trajio.MergeSegments(outPath, segs)
	if err != nil {
		return err
	}
	log.Printf("merged %d segments (%d frames) into %s", len(segs), n, outPath)
	return nil
}
