package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cobaltdb/txnmanager/pkg/storage"
	"github.com/cobaltdb/txnmanager/pkg/txn"
)

var (
	flagHelp    bool
	flagWriters int
	flagReaders int
	flagOps     int
)

func init() {
	flag.BoolVar(&flagHelp, "help", false, "Show help")
	flag.BoolVar(&flagHelp, "h", false, "Show help (short)")
	flag.IntVar(&flagWriters, "writers", 8, "Number of concurrent writer goroutines")
	flag.IntVar(&flagReaders, "readers", 8, "Number of concurrent reader goroutines")
	flag.IntVar(&flagOps, "ops", 5000, "Operations per goroutine")
}

func printHelp() {
	fmt.Print(`
txn-bench

Usage:
  txn-bench [options]

Options:
  -h, -help         Show this help message
  -writers <n>      Number of concurrent writer goroutines (default: 8)
  -readers <n>      Number of concurrent reader goroutines (default: 8)
  -ops <n>          Operations per goroutine (default: 5000)

Examples:
  txn-bench
  txn-bench -writers 32 -readers 32 -ops 20000
`)
}

func main() {
	flag.Parse()

	if flagHelp {
		printHelp()
		os.Exit(0)
	}

	runBenchmark()
}

func runBenchmark() {
	fmt.Printf("txn-bench\n")
	fmt.Printf("=========\n")
	fmt.Printf("writers=%d readers=%d ops=%d\n\n", flagWriters, flagReaders, flagOps)

	l, err := storage.OpenLog(storage.NewMemory())
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		os.Exit(1)
	}
	defer l.Close()

	mgr := txn.NewManager[string](
		l,
		txn.EntityIDCodec[string]{Compare: txn.StringComparator, Serializer: txn.MsgpackIDSerializer[string]{}},
		txn.NewDefaultVerifier[string](txn.WriteSetOnly, txn.MsgpackIDSerializer[string]{}),
		nil,
	)

	ctx := context.Background()

	var committed, conflicts, reads int64
	var wg sync.WaitGroup
	start := time.Now()

	stop := make(chan struct{})
	var sweeperWg sync.WaitGroup
	sweeperWg.Add(1)
	go func() {
		defer sweeperWg.Done()
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				mgr.RetirementSweep()
			}
		}
	}()

	for w := 0; w < flagWriters; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < flagOps; i++ {
				wctx, err := mgr.Begin(ctx, false)
				if err != nil {
					continue
				}
				cur, _ := mgr.Current(wctx)
				rw := cur.(*txn.ReadWriteTxn[string])
				key := "k" + strconv.Itoa(id%4)
				_ = rw.AddEdit(key, []byte(strconv.Itoa(i)))
				if err := mgr.Commit(wctx); err != nil {
					atomic.AddInt64(&conflicts, 1)
					continue
				}
				atomic.AddInt64(&committed, 1)
				mgr.AdvanceBaseline(rw.CommitLSN() - 1)
			}
		}(w)
	}

	for r := 0; r < flagReaders; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < flagOps; i++ {
				rctx, err := mgr.Begin(ctx, true)
				if err != nil {
					continue
				}
				_ = mgr.Commit(rctx)
				atomic.AddInt64(&reads, 1)
			}
		}()
	}

	wg.Wait()
	close(stop)
	sweeperWg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("committed=%d conflicts=%d reads=%d elapsed=%s\n", committed, conflicts, reads, elapsed)
}
