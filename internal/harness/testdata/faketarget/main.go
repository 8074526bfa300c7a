// Command faketarget impersonates the rust-red binary for harness
// tests. It accepts the real invocation surface (-v, -f, --stdin) and
// writes record-separator framed JSON to stdout. Behavior is selected
// through RUSTRED_FAKE_MODE so the argv stays identical to a real run:
//
//	echo      emit the stdin document as one frame, then await interrupt
//	emit      emit N frames after a banner, then await interrupt
//	short     emit N frames, then exit immediately
//	stall     emit nothing and block until killed
//	bad-frame emit a valid frame, a malformed one, then a valid one
//
// N comes from RUSTRED_FAKE_COUNT (default 2).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"
)

func emitFrame(payload string) {
	fmt.Printf("\x1e%s\n", payload)
}

func awaitInterrupt(ch <-chan os.Signal) {
	<-ch
	os.Exit(0)
}

func main() {
	verbose := flag.Int("v", 2, "verbosity level")
	flowsPath := flag.String("f", "", "path of the flows file")
	useStdin := flag.Bool("stdin", false, "read flows from stdin")
	flag.Parse()
	_ = verbose

	// Install the handler before any output so the harness cannot win a
	// race between the last frame and the interrupt.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	mode := os.Getenv("RUSTRED_FAKE_MODE")
	if mode == "" {
		if *useStdin {
			mode = "echo"
		} else {
			mode = "emit"
		}
	}

	count := 2
	if s := os.Getenv("RUSTRED_FAKE_COUNT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			count = n
		}
	}

	fmt.Fprintf(os.Stderr, "faketarget: mode=%s flows=%q stdin=%v\n", mode, *flowsPath, *useStdin)

	switch mode {
	case "echo":
		doc, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "faketarget: reading stdin:", err)
			os.Exit(1)
		}
		emitFrame(strings.TrimSpace(string(doc)))
		awaitInterrupt(sig)

	case "emit":
		fmt.Println("runtime starting, this banner is not a frame")
		for i := 1; i <= count; i++ {
			emitFrame(fmt.Sprintf(`{"seq":%d,"payload":"msg-%d"}`, i, i))
		}
		awaitInterrupt(sig)

	case "short":
		for i := 1; i <= count; i++ {
			emitFrame(fmt.Sprintf(`{"seq":%d}`, i))
		}
		os.Exit(0)

	case "stall":
		fmt.Println("banner only, then silence")
		time.Sleep(time.Hour)

	case "bad-frame":
		emitFrame(`{"seq":1}`)
		emitFrame(`{broken`)
		emitFrame(`{"seq":3}`)
		awaitInterrupt(sig)

	default:
		fmt.Fprintf(os.Stderr, "faketarget: unknown mode %q\n", mode)
		os.Exit(2)
	}
}
