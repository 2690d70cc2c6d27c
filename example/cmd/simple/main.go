package main

import (
	"fmt"
	"log"
	"os"
	"time"

	tabletclient "github.com/zikwall/tabletstore-client"
	"github.com/zikwall/tabletstore-client/src/cx"
)

// A minimal end-to-end walk: create a table, insert a few rows through an
// auto-flushing session, then scan them back.
func main() {
	masterAddr := os.Getenv("MASTER_ADDRESS")
	if masterAddr == "" {
		masterAddr = "127.0.0.1:7051"
	}

	client, err := tabletclient.NewClient(tabletclient.DefaultOptions().
		SetMasterAddress(masterAddr).
		SetAdminTimeout(10 * time.Second).
		SetDebugMode(true))
	if err != nil {
		log.Fatalln(err)
	}

	schema := cx.NewSchema([]cx.ColumnSchema{
		{Name: "key", Type: cx.TypeUint32},
		{Name: "host", Type: cx.TypeString},
		{Name: "hits", Type: cx.TypeUint64},
	}, 1)

	if err := client.CreateTable("example_hits", schema, nil); err != nil {
		log.Fatalln(err)
	}

	table, err := client.OpenTable("example_hits")
	if err != nil {
		log.Fatalln(err)
	}

	session := client.NewSession()
	defer session.Close()

	for i := uint32(1); i <= 3; i++ {
		insert := table.NewInsert()
		_ = insert.Row().SetUint32("key", i)
		_ = insert.Row().SetString("host", fmt.Sprintf("web-%d", i))
		_ = insert.Row().SetUint64("hits", uint64(i)*100)
		if err := session.Apply(insert); err != nil {
			log.Fatalln(err)
		}
	}

	scanner := tabletclient.NewScanner(table)
	defer scanner.Close()
	if err := scanner.Open(); err != nil {
		log.Fatalln(err)
	}
	for scanner.HasMoreRows() {
		var rows []cx.Vector
		if err := scanner.NextBatch(&rows); err != nil {
			log.Fatalln(err)
		}
		for _, row := range rows {
			fmt.Printf("key=%v host=%v hits=%v\n", row[0], row[1], row[2])
		}
	}
}
