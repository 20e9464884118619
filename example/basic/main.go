package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/reedan88/Isaias"
)

func main() {
	flow, err := isaias.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := flow.Run(ctx)
	if report != nil {
		for name, res := range report.Results {
			fmt.Printf("%s: %d files, %d rows\n", name, len(res.Files), res.Dataset.Len())
		}
		for _, p := range report.Plots {
			fmt.Printf("plot %s -> %s\n", p.Name, p.Path)
		}
	}
	if err != nil {
		log.Fatalf("run: %v", err)
	}
}
