package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/reedan88/Isaias"
)

func main() {
	flow, err := isaias.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sink, deliveries, closeDeliveries := isaias.NewChannelSink("fanout", 4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		summarize("sst", "sea_surface_temperature", deliveries)
	}()

	_, err = flow.Run(context.Background(), isaias.OutputSink(sink))
	closeDeliveries()
	wg.Wait()
	if err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

func summarize(name, variable string, deliveries <-chan isaias.Delivery) {
	for d := range deliveries {
		v, ok := d.Dataset.Var(variable)
		if !ok {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, x := range v.Values {
			if math.IsNaN(x) {
				continue
			}
			lo, hi = math.Min(lo, x), math.Max(hi, x)
		}
		fmt.Printf("[%s] %s %s min=%.3f max=%.3f\n", name, d.Source, variable, lo, hi)
	}
}
