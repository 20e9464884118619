package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/reedan88/Isaias/pkg/isaias"
)

func main() {
	flow, err := isaias.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	callback := func(source string, ds *isaias.Dataset) error {
		first, last := ds.Time[0], ds.Time[len(ds.Time)-1]
		fmt.Printf("%s %s rows=%d %s..%s vars=%v\n",
			source,
			ds.Attrs["Location_name"],
			ds.Len(),
			first.Format(time.RFC3339),
			last.Format(time.RFC3339),
			ds.Names(),
		)
		return nil
	}

	if _, err := flow.Run(ctx, isaias.OutputCallback("stdout", callback)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
