// Command seed loads a demo account and one listing per image directory entry, uploading the
// images server-side through the configured storage driver. It reads the same environment as
// the API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sixmarket/internal/app/asset"
	"sixmarket/internal/app/db"
	"sixmarket/internal/app/listing"
	"sixmarket/internal/app/storage"
	"sixmarket/internal/app/user"
	"sixmarket/internal/configs"
	"sixmarket/internal/pkg/logx"

	"golang.org/x/crypto/bcrypt"
)

// demoCategory is the seeded "Electronics" category.
const demoCategory = "00000000-0000-4000-8000-000000000001"

func main() {
	dir := flag.String("images", "./seed-images", "Directory of images; each becomes one listing")
	email := flag.String("email", "demo@sixmarket.local", "Demo account email")
	password := flag.String("password", "demo-password", "Demo account password")
	flag.Parse()

	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)

	if cfg.StorageDriver == configs.StorageDriverMemory {
		logx.Fatal(errors.New("memory storage is process-local"), "Seeding needs the s3 storage driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to open database")
	}
	defer pool.Close()

	store, err := storage.NewStorageService(ctx, storage.ServiceConfig{
		Driver:            cfg.StorageDriver,
		S3BucketName:      cfg.S3BucketName,
		S3Region:          cfg.S3Region,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3SessionToken:    cfg.S3SessionToken,
		S3UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize object storage")
	}

	users := user.NewRepository(pool)
	owner, err := ensureUser(ctx, users, *email, *password)
	if err != nil {
		logx.Fatal(err, "Failed to create demo user")
	}

	issuer := asset.NewIssuer(store, asset.NewKeyGenerator(cfg.KeyScheme, time.Now), asset.IssuerConfig{})
	listings := listing.NewService(listing.NewRepository(pool), users, issuer, cfg.ImageFailurePolicy)
	keys := asset.NewKeyGenerator(cfg.KeyScheme, time.Now)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logx.Fatal(err, "Failed to read image directory", "dir", *dir)
	}

	created := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		mimeType, ok := asset.MIMEFromFileName(e.Name())
		if !ok {
			logx.Warn("Skipping non-image file", "file", e.Name())
			continue
		}

		key := keys.Key(e.Name())
		if err := uploadFile(ctx, store, filepath.Join(*dir, e.Name()), key, mimeType); err != nil {
			logx.Error(err, "Upload failed", "file", e.Name())
			continue
		}

		l, err := listings.Create(ctx, owner.Email, listing.CreateInput{
			Name:        fmt.Sprintf("Demo item %d", created+1),
			Description: "Seeded from " + e.Name(),
			Price:       listing.Price(10 * (created + 1)),
			Images:      []string{key},
			CategoryID:  demoCategory,
		})
		if err != nil {
			logx.Error(err, "Create listing failed", "key", key)
			continue
		}
		created++
		logx.Info("Seeded listing", "listing_id", l.ID.String(), "key", key)
	}

	logx.Info("Seeding finished", "listings", created)
}

func ensureUser(ctx context.Context, users user.Repository, email, password string) (*user.User, error) {
	u, err := users.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u = &user.User{Email: email, Name: "Demo Seller", PasswordHash: string(hash)}
	if err := users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func uploadFile(ctx context.Context, store storage.StorageService, path, key, mimeType string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > asset.MaxImageSize {
		return fmt.Errorf("%s: larger than %d MB", path, asset.MaxImageSizeMB)
	}
	return store.Upload(ctx, key, mimeType, f)
}
