// Command resque-worker runs a resque.Worker against a YAML config file.
//
// Job classes are registered in registerClasses below. A production
// deployment of this binary typically forks it into its own repository
// and adds its own classes there; the "Log" class here exists only so the
// binary is runnable out of the box and so the self-re-exec child path
// (see resque.RunChildMode) has something to execute.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/resquego/resque"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	classes := resque.NewClassRegistry()
	registerClasses(classes)

	if resque.IsChildExecArg(os.Args[1:]) {
		resque.RunChildMode(classes)
		return
	}

	configPath := flag.String("config", "", "Path to config.yml (default: ./config.yml)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	listClasses := flag.Bool("list-classes", false, "Print registered job classes and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("resque-worker %s\n", Version)
		fmt.Printf("  commit:  %s\n", Commit)
		fmt.Printf("  built:   %s\n", BuildDate)
		os.Exit(0)
	}

	if *listClasses {
		for _, name := range classes.List() {
			fmt.Println(name)
		}
		os.Exit(0)
	}

	cfg, err := resque.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	w, err := resque.New(*cfg, classes)
	if err != nil {
		log.Fatalf("failed to build worker: %v", err)
	}

	log.Printf("starting resque-worker %s", Version)
	log.Printf("  redis:  %s", cfg.RedisAddr)
	log.Printf("  queues: %v", cfg.Queues)

	if err := w.Run(context.Background()); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}

// registerClasses wires up the job classes this binary knows how to
// perform. Extend this as the deployment grows its own job types.
func registerClasses(classes *resque.ClassRegistry) {
	classes.Register("Log", func() resque.Performer {
		return resque.PerformerFunc(func(ctx context.Context, args []interface{}) (interface{}, error) {
			log.Printf("Log job: %v", args)
			return nil, nil
		})
	})
}
