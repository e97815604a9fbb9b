package cmd

import (
	"fmt"
	"time"

	"github.com/jmehdipour/staffhooks/internal/config"
	"github.com/jmehdipour/staffhooks/internal/db"
	"github.com/jmehdipour/staffhooks/internal/logger"
	"github.com/jmehdipour/staffhooks/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo employers, staff and credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logger.Init(cfg.Log.Level)

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.PoolOptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Info("seeding demo tenants")

		tx, err := sqlDB.Beginx()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		now := time.Now().UTC()
		for _, s := range demoTenants() {
			id, err := upsertEmployer(tx, s.employer, now)
			if err != nil {
				return err
			}
			for _, u := range s.users {
				if err := upsertUser(tx, id, u, now); err != nil {
					return err
				}
			}
			for _, k := range s.keys {
				if err := upsertKey(tx, id, k, now); err != nil {
					return err
				}
			}
			log.Info("tenant seeded", zap.String("employer", s.employer.Name), zap.Int64("employer_id", id))
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit seed: %w", err)
		}
		log.Info("seed completed")
		return nil
	},
}

type seedUser struct {
	model.User
	groups []string
}

type seedTenant struct {
	employer model.Employer
	users    []seedUser
	keys     []model.TenantAPIKey
}

// demoTenants returns two tenants: one fully configured and one without
// Twilio credentials, so credential-skip paths can be tried locally.
func demoTenants() []seedTenant {
	return []seedTenant{
		{
			employer: model.Employer{
				Name:           "Acme Corp",
				SenderEmail:    "hr@acme.example",
				SenderVerified: true,
				APIKey:         "11111111111111111111111111111111",
				Active:         true,
				RateLimitRPS:   intptr(20),
			},
			users: []seedUser{
				{User: model.User{Username: "acme.hr", Email: "hr@acme.example", Phone: "+15550000001", FirstName: "Hana", LastName: "Reyes"}, groups: []string{model.GroupHR}},
				{User: model.User{Username: "acme.jdoe", Email: "jdoe@acme.example", Phone: "+15550000002", FirstName: "Jo", LastName: "Doe"}},
			},
			keys: []model.TenantAPIKey{
				{Provider: model.ProviderTwilio, AccountSID: "ACxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx", AuthToken: "changeme", MessagingServiceSID: "MGxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"},
				{Provider: model.ProviderSendGrid, SenderEmail: "hr@acme.example", SenderName: "Acme HR"},
			},
		},
		{
			employer: model.Employer{
				Name:         "Globex",
				SenderEmail:  "people@globex.example",
				APIKey:       "22222222222222222222222222222222",
				Active:       true,
				RateLimitRPS: intptr(5),
			},
			users: []seedUser{
				{User: model.User{Username: "globex.people", Email: "people@globex.example", Phone: "+15550000101", FirstName: "Pat"}, groups: []string{model.GroupHR}},
			},
			keys: []model.TenantAPIKey{
				{Provider: model.ProviderSendGrid, SenderEmail: "people@globex.example", SenderName: "Globex People"},
			},
		},
	}
}

func upsertEmployer(tx *sqlx.Tx, e model.Employer, now time.Time) (int64, error) {
	const q = `
INSERT INTO employers
    (name, sender_email, sender_verified, api_key, active, rate_limit_rps, created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name            = VALUES(name),
    sender_email    = VALUES(sender_email),
    sender_verified = VALUES(sender_verified),
    active          = VALUES(active),
    rate_limit_rps  = VALUES(rate_limit_rps),
    updated_at      = VALUES(updated_at)
`
	if _, err := tx.Exec(q, e.Name, e.SenderEmail, e.SenderVerified, e.APIKey, e.Active, e.RateLimitRPS, now, now); err != nil {
		return 0, fmt.Errorf("upsert employer %q: %w", e.Name, err)
	}
	var id int64
	if err := tx.Get(&id, `SELECT id FROM employers WHERE api_key = ?`, e.APIKey); err != nil {
		return 0, fmt.Errorf("lookup employer %q: %w", e.Name, err)
	}
	return id, nil
}

func upsertUser(tx *sqlx.Tx, employerID int64, u seedUser, now time.Time) error {
	const q = `
INSERT INTO users
    (username, email, phone, first_name, last_name, employer_id, active, created_at)
VALUES
    (?, ?, ?, ?, ?, ?, 1, ?)
ON DUPLICATE KEY UPDATE
    email       = VALUES(email),
    phone       = VALUES(phone),
    first_name  = VALUES(first_name),
    last_name   = VALUES(last_name),
    employer_id = VALUES(employer_id)
`
	if _, err := tx.Exec(q, u.Username, u.Email, u.Phone, u.FirstName, u.LastName, employerID, now); err != nil {
		return fmt.Errorf("upsert user %q: %w", u.Username, err)
	}
	for _, g := range u.groups {
		if _, err := tx.Exec(
			`INSERT IGNORE INTO user_groups (user_id, group_name) SELECT id, ? FROM users WHERE username = ?`,
			g, u.Username,
		); err != nil {
			return fmt.Errorf("add %q to group %q: %w", u.Username, g, err)
		}
	}
	return nil
}

func upsertKey(tx *sqlx.Tx, employerID int64, k model.TenantAPIKey, now time.Time) error {
	const q = `
INSERT INTO tenant_api_keys
    (employer_id, provider, active, account_sid, auth_token, notify_service_sid, messaging_service_sid,
     sender_email, sender_name, access_token, root_path, created_at, updated_at)
VALUES
    (?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    account_sid           = VALUES(account_sid),
    auth_token            = VALUES(auth_token),
    notify_service_sid    = VALUES(notify_service_sid),
    messaging_service_sid = VALUES(messaging_service_sid),
    sender_email          = VALUES(sender_email),
    sender_name           = VALUES(sender_name),
    access_token          = VALUES(access_token),
    root_path             = VALUES(root_path),
    updated_at            = VALUES(updated_at)
`
	if _, err := tx.Exec(q, employerID, k.Provider, k.AccountSID, k.AuthToken, k.NotifyServiceSID, k.MessagingServiceSID,
		k.SenderEmail, k.SenderName, k.AccessToken, k.RootPath, now, now); err != nil {
		return fmt.Errorf("upsert %s key for employer %d: %w", k.Provider, employerID, err)
	}
	return nil
}

func intptr(i int) *int { return &i }
