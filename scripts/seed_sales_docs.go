//go:build ignore

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	config "sales-forecast-api/configs"
	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/logging"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// 使い方: go run scripts/seed_sales_docs.go -days 120 -collection sales
func main() {
	days := flag.Int("days", 90, "number of days of sales to generate")
	collection := flag.String("collection", "", "target collection (default: DEFAULT_COLLECTION)")
	flag.Parse()

	log.Println("🚀 売上サンプルデータの投入を開始します...")

	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	// 設定を読み込む
	cfg := config.LoadConfig()
	if *collection == "" {
		*collection = cfg.DefaultCollection
	}

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("ロガーの初期化に失敗: %v", err)
	}

	ctx := context.Background()
	store, err := datastore.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("ストアの接続に失敗: %v", err)
	}
	defer store.Close()

	writer, ok := store.(datastore.Writer)
	if !ok {
		log.Fatalf("ストア %s は書き込みに対応していません", store.Name())
	}

	docs := generateSalesDocuments(*days, time.Now().UTC().AddDate(0, 0, -*days))
	if err := writer.Put(ctx, *collection, docs); err != nil {
		log.Fatalf("ドキュメントの書き込みに失敗: %v", err)
	}

	log.Printf("✅ %d 件のドキュメントを %s/%s に投入しました", len(docs), store.Name(), *collection)
}

var medicines = []struct {
	name string
	base float64
}{
	{"Paracetamol", 40},
	{"Ibuprofen", 25},
	{"Cough Syrup", 15},
	{"Vitamin C", 10},
}

var weathers = []string{"Sunny", "Cloudy", "Rainy", "Snowy"}

// generateSalesDocuments は曜日・季節・天候の影響を含んだ売上を作る
func generateSalesDocuments(days int, start time.Time) []datastore.Document {
	docs := make([]datastore.Document, 0, days*len(medicines))
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i)
		weather := weathers[(i*7+i/3)%len(weathers)]
		temperature := 15 + 10*math.Sin(2*math.Pi*float64(date.YearDay())/365)
		humidity := 55 + float64((i*13)%30)
		promotion := i%14 == 0

		for j, m := range medicines {
			qty := m.base
			switch date.Weekday() {
			case time.Saturday, time.Sunday:
				qty *= 1.3 // 週末は30%増
			}
			if weather == "Rainy" || weather == "Snowy" {
				qty *= 1.1
			}
			if promotion {
				qty *= 1.5
			}
			qty += float64((i + j) % 5)

			doc := datastore.Document{
				"id":                uuid.NewString(),
				"date":              date.Format("2006-01-02"),
				"medicine_name":     m.name,
				"quantity":          math.Round(qty),
				"weather_condition": weather,
				"temperature":       math.Round(temperature*10) / 10,
				"humidity":          humidity,
				"is_promotion":      promotion,
				"day_of_week":       date.Weekday().String(),
			}
			// 一部の記録は天候が欠損
			if (i+j)%11 == 0 {
				delete(doc, "weather_condition")
			}
			docs = append(docs, doc)
		}
	}
	fmt.Printf("generated %d documents for %d days\n", len(docs), days)
	return docs
}
