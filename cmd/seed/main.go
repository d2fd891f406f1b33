// Command seed provisions the default admin account, an admin API key,
// and the sample data items. Intended for development and fresh deploys.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Iurilui616/APICHARLENO/internal/auth"
	"github.com/Iurilui616/APICHARLENO/internal/model"
	"github.com/Iurilui616/APICHARLENO/internal/repository"
)

type output struct {
	AdminUser string   `json:"admin_user"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
	Items     int      `json:"items_seeded"`
	Rotated   int      `json:"keys_rotated"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		username    = flag.String("admin-user", "admin", "Admin account username")
		password    = flag.String("admin-password", "admin123", "Admin account password")
		keyEnv      = flag.String("key-env", auth.EnvLive, "API key environment: live or test")
		rotate      = flag.Bool("rotate", false, "Revoke earlier seed keys before issuing a new one")
		skipItems   = flag.Bool("skip-items", false, "Skip seeding sample items")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	admin, err := ensureAdmin(ctx, repo, *username, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	rotated := 0
	if *rotate {
		rotated, err = rotateSeedKeys(ctx, repo, admin.ID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	generated, err := auth.GenerateAPIKey(*keyEnv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}

	apiKey := &model.APIKey{
		ID:            ulid.Make().String(),
		UserID:        admin.ID,
		KeyHash:       generated.Hash,
		KeyPrefix:     generated.Prefix,
		Scopes:        []string{model.ScopeAdmin},
		RateLimitTier: model.TierUnlimited,
		Name:          "seed",
		CreatedAt:     time.Now().UTC(),
	}

	if err := repo.CreateAPIKey(ctx, apiKey); err != nil {
		fmt.Fprintln(os.Stderr, "create api key:", err)
		os.Exit(1)
	}

	seeded := 0
	if !*skipItems {
		seeded, err = seedItems(ctx, repo, admin.ID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}

	out := output{
		AdminUser: admin.Username,
		KeyID:     apiKey.ID,
		Key:       generated.Plaintext,
		KeyPrefix: apiKey.KeyPrefix,
		Scopes:    apiKey.Scopes,
		Items:     seeded,
		Rotated:   rotated,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

// ensureAdmin creates the admin account if it does not already exist.
func ensureAdmin(ctx context.Context, repo *repository.Repository, username, password string) (*model.User, error) {
	existing, err := repo.GetUserByUsername(ctx, username)
	if err == nil {
		if !existing.IsAdmin() {
			return nil, fmt.Errorf("user %s exists without the admin role", username)
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("lookup admin: %w", err)
	}

	hash, err := auth.HashSecret(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Username:     username,
		Email:        username + "@myapi.com",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Verified:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return user, nil
}

// rotateSeedKeys revokes the admin's earlier seed-issued keys so re-running
// the seeder does not accumulate live credentials.
func rotateSeedKeys(ctx context.Context, repo *repository.Repository, userID string) (int, error) {
	keys, err := repo.ListAPIKeysByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list api keys: %w", err)
	}

	rotated := 0
	for _, key := range keys {
		if key.Name != "seed" || key.IsRevoked() {
			continue
		}
		if err := repo.RevokeAPIKey(ctx, key.ID); err != nil {
			return rotated, fmt.Errorf("revoke key %s: %w", key.ID, err)
		}
		rotated++
	}
	return rotated, nil
}

// seedItems inserts the default sample records when the table is empty.
func seedItems(ctx context.Context, repo *repository.Repository, createdBy string) (int, error) {
	count, err := repo.CountItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	names := []string{"Item 1", "Item 2", "Item 3"}
	for _, name := range names {
		item := &model.Item{
			ID:        ulid.Make().String(),
			Name:      name,
			Payload:   map[string]any{"name": name},
			CreatedBy: createdBy,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return 0, fmt.Errorf("create item %q: %w", name, err)
		}
	}
	return len(names), nil
}
