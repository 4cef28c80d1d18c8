package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"storyforge/internal/adapter/repo"
	"storyforge/internal/domain"
	"storyforge/internal/infra"
	"storyforge/internal/ledger"
)

func main() {
	var (
		idFlag    string
		imageFlag int
		videoFlag int
		anonFlag  bool
		addImages int
		addVideos int
	)

	flag.StringVar(&idFlag, "id", "", "identity ID to update")
	flag.IntVar(&imageFlag, "images", 0, "image generation limit to set")
	flag.IntVar(&videoFlag, "videos", 0, "video generation limit to set")
	flag.BoolVar(&anonFlag, "anonymous", false, "treat the id as an anonymous session id")
	flag.IntVar(&addImages, "add-images", 0, "raise the image limit by this amount instead of overriding")
	flag.IntVar(&addVideos, "add-videos", 0, "raise the video limit by this amount instead of overriding")
	flag.Parse()

	identityID := strings.TrimSpace(idFlag)
	if identityID == "" {
		exitWithError(errors.New("-id is required"))
	}
	raising := addImages > 0 || addVideos > 0
	if !raising && (imageFlag <= 0 || videoFlag <= 0) {
		exitWithError(errors.New("either -images and -videos, or -add-images/-add-videos, must be positive"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "userlimits").Logger()
	usageLedger := ledger.New(repo.NewUsageRepository(pool, 0, 0), logger)

	identity := domain.UserIdentity(identityID)
	if anonFlag {
		identity = domain.AnonymousIdentity(identityID)
	}

	if raising {
		if err := usageLedger.IncreaseLimits(ctx, identity, addImages, addVideos); err != nil {
			exitWithError(fmt.Errorf("failed to raise limits: %w", err))
		}
	} else {
		if err := usageLedger.SetLimits(ctx, identity, imageFlag, videoFlag); err != nil {
			exitWithError(fmt.Errorf("failed to set limits: %w", err))
		}
	}

	remaining, err := usageLedger.RemainingCounts(ctx, identity)
	if err != nil {
		exitWithError(fmt.Errorf("failed to read remaining counts: %w", err))
	}
	fmt.Printf("Identity %s updated: remaining_images=%d remaining_videos=%d\n",
		identityID, remaining.Images, remaining.Videos)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
