// blockvolctl is an interactive client for a running blockvold instance.
//
// With a terminal attached it runs a go-prompt REPL; otherwise it executes
// a single command from the arguments, which makes it usable from scripts:
//
//	blockvolctl -addr http://localhost:8080 encoded 100 200
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/blockvol/internal/codec"
	"github.com/xtxerr/blockvol/internal/series"
)

var suggestions = []prompt.Suggest{
	{Text: "encoded", Description: "encoded <start> <end> - fetch delta-encoded series"},
	{Text: "decode", Description: "decode <start> <end> - fetch and decode back to samples"},
	{Text: "raw", Description: "raw <start> <end> - fetch raw cache rows"},
	{Text: "stats", Description: "stats <start> <end> - fetch volume summary"},
	{Text: "health", Description: "check server health"},
	{Text: "status", Description: "fetch server path and cache counters"},
	{Text: "exit", Description: "quit"},
}

type ctl struct {
	addr string
	http *http.Client
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "blockvold address")
	flag.Parse()

	c := &ctl{
		addr: strings.TrimRight(*addr, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}

	if flag.NArg() > 0 {
		if err := c.execute(strings.Join(flag.Args(), " ")); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "no command given and stdin is not a terminal")
		os.Exit(1)
	}

	fmt.Printf("blockvolctl connected to %s (type 'exit' to quit)\n", c.addr)
	p := prompt.New(
		func(in string) {
			if err := c.execute(in); err != nil {
				fmt.Println("error:", err)
			}
		},
		completer,
		prompt.OptionPrefix("blockvol> "),
		prompt.OptionTitle("blockvolctl"),
	)
	p.Run()
}

func completer(d prompt.Document) []prompt.Suggest {
	if d.FindStartOfPreviousWord() != 0 {
		return nil
	}
	return prompt.FilterHasPrefix(suggestions, d.GetWordBeforeCursor(), true)
}

// execute runs one command line.
func (c *ctl) execute(in string) error {
	fields := strings.Fields(in)
	if len(fields) == 0 {
		return nil
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "encoded":
		return c.get("/blocks/encoded", args, printJSON)
	case "decode":
		return c.get("/blocks/encoded", args, printDecoded)
	case "raw":
		return c.get("/blocks", args, printJSON)
	case "stats":
		return c.get("/blocks/stats", args, printJSON)
	case "health":
		return c.get("/healthz", nil, printJSON)
	case "status":
		return c.get("/statusz", nil, printJSON)
	case "exit", "quit":
		os.Exit(0)
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// get fetches path with optional start/end args and renders the body.
func (c *ctl) get(path string, args []string, render func([]byte) error) error {
	url := c.addr + path
	if len(args) >= 2 {
		url = fmt.Sprintf("%s?start=%s&end=%s", url, args[0], args[1])
	}

	resp, err := c.http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return render(body)
}

// printJSON pretty-prints a JSON body.
func printJSON(body []byte) error {
	var buf strings.Builder
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return err
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	fmt.Print(buf.String())
	return nil
}

// printDecoded decodes an envelope back into samples, verifying the
// round trip client-side.
func printDecoded(body []byte) error {
	var env series.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}

	samples, err := codec.Decode(env.EncodedSeries)
	if err != nil {
		return err
	}

	fmt.Printf("cached=%v samples=%d\n", env.IsCached, len(samples))
	for _, s := range samples {
		fmt.Printf("  %s  volume=%d\n", time.Unix(s.Epoch, 0).UTC().Format(time.RFC3339), s.Volume)
	}
	return nil
}
