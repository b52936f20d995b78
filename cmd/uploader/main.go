// Command uploader publishes a listing with local images through the SixMarket API,
// following the same grant, PUT and create sequence as the web form.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sixmarket/internal/app/listing"
	"sixmarket/internal/pkg/logx"
	"sixmarket/internal/uploader"
)

func main() {
	baseURL := flag.String("api", "http://localhost:8080", "SixMarket API base URL")
	token := flag.String("token", os.Getenv("SIXMARKET_TOKEN"), "Session token; skips login when set")
	email := flag.String("email", os.Getenv("SIXMARKET_EMAIL"), "Account email")
	password := flag.String("password", os.Getenv("SIXMARKET_PASSWORD"), "Account password")
	name := flag.String("name", "", "Listing name (required)")
	description := flag.String("description", "", "Listing description")
	condition := flag.String("condition", "", "NEW, LIKE_NEW, GOOD, FAIR or POOR")
	price := flag.Int("price", 0, "Price in whole units")
	location := flag.String("location", "", "Pickup location")
	canDeliver := flag.Bool("deliver", false, "Seller can deliver")
	category := flag.String("category", "", "Category id (required)")
	tags := flag.String("tags", "", "Comma-separated tag ids")
	keepGoing := flag.Bool("continue", false, "Keep uploading after a failed image")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout")
	requestTimeout := flag.Duration("request-timeout", 30*time.Second, "Timeout of a single HTTP request")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] image...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logx.InitGlobalLogger(true, level)

	if *name == "" || *category == "" || (*token == "" && *email == "") {
		flag.Usage()
		os.Exit(2)
	}

	files := make([]uploader.File, 0, flag.NArg())
	for _, path := range flag.Args() {
		f, err := uploader.FileFromPath(path)
		if err != nil {
			logx.Fatal(err, "Invalid image")
		}
		files = append(files, f)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	client := uploader.NewClient(*baseURL,
		uploader.WithHTTPClient(&http.Client{Timeout: *requestTimeout}),
		uploader.WithToken(*token),
	)
	if *token == "" {
		if _, err := client.Login(ctx, *email, *password); err != nil {
			logx.Fatal(err, "Login failed")
		}
	}

	opts := []uploader.Option{
		uploader.WithObserver(func(fr uploader.FileResult) {
			fmt.Printf("[%d/%d] %s: %s\n", fr.Index+1, len(files), fr.Name, fr.State)
		}),
	}
	if *keepGoing {
		opts = append(opts, uploader.WithPolicy(uploader.ContinueOnFailure))
	}

	in := listing.CreateInput{
		Name:        *name,
		Description: *description,
		Condition:   *condition,
		Price:       listing.Price(*price),
		Location:    *location,
		CanDeliver:  canDeliver,
		CategoryID:  *category,
		Tags:        splitList(*tags),
	}

	logx.Info("Publishing listing", "name", *name, "images", uploader.Names(files))
	created, res, err := uploader.NewOrchestrator(client, opts...).Publish(ctx, files, in)
	if err != nil {
		logx.Fatal(err, "Publish failed")
	}
	if uerr := res.Err(); uerr != nil {
		logx.Warn("Listing created with missing images", "error", uerr.Error())
	}

	fmt.Printf("Listing %s created with %d image(s)\n", created.ID, len(created.Images))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
