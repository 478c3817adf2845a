// Command khanactl is a terminal companion for the Khana Fast order board.
// It lists orders through the same filter pipeline the dashboard uses and can
// watch the board live.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/khana-fast/api/internal/client"
	"github.com/khana-fast/api/internal/filter"
)

func main() {
	_ = godotenv.Load()

	var (
		baseURL  = flag.String("api", envOr("KHANA_API", "http://localhost:8080"), "API base URL")
		email    = flag.String("email", os.Getenv("KHANA_EMAIL"), "login email")
		password = flag.String("password", os.Getenv("KHANA_PASSWORD"), "login password")

		search   = flag.String("search", "", "search order number, customer, address or phone")
		statuses = flag.String("status", "", "comma-separated status filter")
		methods  = flag.String("method", "", "comma-separated payment method filter (cod, online)")
		from     = flag.String("from", "", "orders created on or after this day (YYYY-MM-DD)")
		to       = flag.String("to", "", "orders created on or before this day (YYYY-MM-DD)")
		minItems = flag.Int("min-items", 0, "minimum number of item lines")
		minQty   = flag.Int("min-qty", 0, "minimum quantity on any single item line")

		limit  = flag.Int("limit", 20, "page size")
		offset = flag.Int("offset", 0, "page offset")
		watch  = flag.Bool("watch", false, "keep the listing live, refreshing on an interval")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("email and password are required (flags or KHANA_EMAIL / KHANA_PASSWORD)")
	}

	sel, err := buildSelection(*search, *statuses, *methods, *from, *to, *minItems, *minQty)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	c := client.New(*baseURL, "")
	if _, err := c.Login(ctx, *email, *password); err != nil {
		log.Fatalf("login: %v", err)
	}

	if *watch {
		watchOrders(ctx, c, sel, int32(*limit))
		return
	}

	page, err := c.ListOrders(ctx, filter.Compile(sel), int32(*limit), int32(*offset))
	if err != nil {
		log.Fatalf("list orders: %v", err)
	}
	printPage(page)
}

func buildSelection(search, statuses, methods, from, to string, minItems, minQty int) (filter.Selection, error) {
	sel := filter.Selection{
		SearchText:       search,
		MinItemCount:     minItems,
		MinTotalQuantity: minQty,
	}
	if statuses != "" {
		sel.Statuses = splitList(statuses)
	}
	if methods != "" {
		sel.PaymentMethods = splitList(methods)
	}
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			return filter.Selection{}, fmt.Errorf("bad -from date %q: %w", from, err)
		}
		sel.DateFrom = &t
	}
	if to != "" {
		t, err := time.ParseInLocation("2006-01-02", to, time.Local)
		if err != nil {
			return filter.Selection{}, fmt.Errorf("bad -to date %q: %w", to, err)
		}
		sel.DateTo = &t
	}
	return sel, nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func watchOrders(ctx context.Context, c *client.Client, sel filter.Selection, limit int32) {
	w := client.NewWatcher(c, client.WatcherConfig{
		PageSize: limit,
		OnUpdate: func(page client.Page) {
			fmt.Print("\033[H\033[2J") // clear screen
			fmt.Printf("khanactl watch, refreshed %s\n\n", time.Now().Format("15:04:05"))
			printPage(page)
		},
		OnError: func(err error) {
			log.Printf("refresh: %v", err)
		},
	})
	w.Start(ctx)
	w.SetSelection(ctx, sel)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	w.Stop()
}

func printPage(page client.Page) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tCUSTOMER\tSTATUS\tTOTAL\tNEXT\tCREATED")
	for _, o := range page.Orders {
		next := make([]string, 0, len(o.Actions))
		for _, a := range o.Actions {
			next = append(next, a.Label)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OrderNumber, o.CustomerName, o.Status, o.TotalAmount,
			strings.Join(next, ", "), o.CreatedAt.Local().Format("2 Jan 15:04"))
	}
	tw.Flush()
	fmt.Printf("\n%d of %d orders (offset %d)\n", len(page.Orders), page.Total, page.Offset)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
