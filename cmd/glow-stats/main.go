// glow-stats prints the recent daily summaries and lifetime totals from the
// event database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/teslashibe/glow/internal/config"
	"github.com/teslashibe/glow/internal/log"
	"github.com/teslashibe/glow/pkg/store"
)

func main() {
	path := flag.String("db", "emotion_data.db", "SQLite database path")
	days := flag.Int("days", 7, "Number of days to show")
	recompute := flag.Bool("recompute", false, "Recompute the summaries before printing")
	flag.Parse()

	if v := os.Getenv(config.EnvDB); v != "" && !flagSet("db") {
		*path = v
	}

	ctx := context.Background()
	st, err := store.Open(ctx, store.BackendSQLite, *path)
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer st.Close()

	if *recompute {
		day := time.Now()
		for i := 0; i < *days; i++ {
			if err := st.RecomputeDailyStats(ctx, store.DateOf(day)); err != nil {
				log.Fatalf("recompute: %v", err)
			}
			day = day.AddDate(0, 0, -1)
		}
	}

	history, err := st.History(ctx, time.Now(), *days)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	totals, err := st.TotalStats(ctx)
	if err != nil {
		log.Fatalf("totals: %v", err)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("DATE", "DOMINANT", "EMOTIONS", "TOUCHES", "AVG TOUCH", "MAX TOUCH")
	for _, d := range history {
		t.Row(d.Date, d.DominantEmotion, formatCounts(d.EmotionCounts),
			fmt.Sprint(d.TouchCount),
			fmt.Sprintf("%.2fs", d.AvgTouchDuration),
			fmt.Sprintf("%.2fs", d.MaxTouchDuration))
	}
	fmt.Println(t)

	fmt.Printf("\nTotal emotions: %d  touches: %d  dominant: %s\n",
		totals.TotalEmotions, totals.TotalTouches, totals.DominantEmotion)
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) { set = set || f.Name == name })
	return set
}
