// Command roomctl is an operator tool: it creates room references,
// issues test tokens, and dumps a room's stored messages. Room CRUD
// proper lives outside the messaging core; this covers local setups
// and debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"talkify/auth"
	"talkify/domain"
	"talkify/internal"
	"talkify/repositories"
)

func main() {
	createID := flag.String("create", "", "Create a room: -create <id> -name <name>")
	name := flag.String("name", "", "Room name for -create")
	dump := flag.String("dump", "", "Dump stored messages of a room id")
	limit := flag.Int("limit", 50, "Max messages for -dump")
	tokenUser := flag.String("token", "", "Issue a test token: -token <userID> -as <displayName>")
	displayName := flag.String("as", "", "Display name for -token")
	flag.Parse()

	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatal("Config error: ", err)
	}

	if *tokenUser != "" {
		token, err := auth.GenerateToken([]byte(config.JWTSecret),
			domain.Identity{ID: *tokenUser, Name: *displayName}, config.AuthTokenDuration)
		if err != nil {
			log.Fatal("Token generation failed: ", err)
		}
		fmt.Println(token)
		return
	}

	// Read-only unless creating; BypassLockGuard allows inspecting
	// while the server holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR)
	if *createID == "" {
		opts = opts.WithReadOnly(true).WithBypassLockGuard(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	switch {
	case *createID != "":
		rooms := repositories.NewRoomRepository(db, slog.Default())
		if err := rooms.CreateRoom(domain.Room{ID: *createID, Name: *name, Active: true}); err != nil {
			log.Fatal("Room creation failed: ", err)
		}
		room, err := rooms.Resolve(context.Background(), *createID)
		if err != nil {
			log.Fatal("Room readback failed: ", err)
		}
		fmt.Printf("Created room %s (%s)\n", room.ID, room.Name)

	case *dump != "":
		messages := repositories.NewMessageRepository(db, slog.Default())
		recent, err := messages.GetRecent(*dump, *limit)
		if err != nil {
			log.Fatal("Dump failed: ", err)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"At", "ID", "Sender", "Body"})
		table.SetAutoWrapText(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		for _, m := range recent {
			table.Append([]string{
				m.CreatedAt.Format(time.RFC3339),
				m.ID.String(),
				m.Sender.Name,
				m.Body,
			})
		}
		table.Render()

	default:
		flag.Usage()
	}
}
