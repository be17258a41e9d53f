// Command sheets-check verifies the Google Sheets credentials and sheet
// layout before an import is attempted. It reads both tabs and reports
// how many rows parse.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"sangha/internal/cli"
	gsheet "sangha/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		log.Fatalf("sheets client: %v", err)
	}

	members, err := client.MemberRows(ctx)
	if err != nil {
		log.Fatalf("read member rows: %v", err)
	}
	payments, err := client.PaymentRows(ctx)
	if err != nil {
		log.Fatalf("read payment rows: %v", err)
	}

	fmt.Printf("members:  %d rows\n", len(members))
	fmt.Printf("payments: %d rows\n", len(payments))

	for i, m := range members {
		if i >= 3 {
			fmt.Println("  ...")
			break
		}
		fmt.Printf("  %s  %s  join=%s due=%d\n", m.MemberCode, m.Name, m.JoinMonth, m.MonthlyDue)
	}
}
