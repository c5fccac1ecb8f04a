package main

import (
	"context"
	"flag"

	"github.com/parcelpal/internal/config"
	"github.com/parcelpal/internal/constants"
	"github.com/parcelpal/internal/geo"
	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/models"
	"github.com/parcelpal/internal/provider"
	"github.com/parcelpal/internal/service"
)

type seedUser struct {
	Email    string
	FullName string
	Phone    string
	Lat      float64
	Lng      float64
	Partner  bool
}

type seedDelivery struct {
	ItemName    string
	Phone       string
	Amount      float64
	TimeLimit   int
	Source      geo.Location
	Destination geo.Location
}

var users = []seedUser{
	{Email: "asha@parcelpal.local", FullName: "Asha Verma", Phone: "9876543210", Lat: 28.6139, Lng: 77.2090},
	{Email: "ravi@parcelpal.local", FullName: "Ravi Kumar", Phone: "9812345678", Lat: 28.6304, Lng: 77.2177, Partner: true},
	{Email: "meena@parcelpal.local", FullName: "Meena Iyer", Phone: "9898989898", Lat: 28.5672, Lng: 77.2100, Partner: true},
}

// owned by the first seed user
var deliveries = []seedDelivery{
	{
		ItemName:    "Laptop charger",
		Phone:       "9876543210",
		Amount:      150,
		TimeLimit:   45,
		Source:      geo.Location{Lat: 28.6139, Lng: 77.2090, Address: "Connaught Place, New Delhi"},
		Destination: geo.Location{Lat: 28.5355, Lng: 77.3910, Address: "Sector 18, Noida"},
	},
	{
		ItemName:    "House keys",
		Phone:       "9876543210",
		Amount:      80,
		TimeLimit:   30,
		Source:      geo.Location{Lat: 28.6280, Lng: 77.2190, Address: "Barakhamba Road, New Delhi"},
		Destination: geo.Location{Lat: 28.5918, Lng: 77.2273, Address: "Lodhi Colony, New Delhi"},
	},
	{
		ItemName:    "Documents folder",
		Phone:       "9876543210",
		Amount:      200,
		TimeLimit:   90,
		Source:      geo.Location{Lat: 28.6448, Lng: 77.2167, Address: "Karol Bagh, New Delhi"},
		Destination: geo.Location{Lat: 28.4595, Lng: 77.0266, Address: "Cyber City, Gurugram"},
	},
}

func main() {
	var password string
	flag.StringVar(&password, "password", "parcelpal123", "password for every seeded account")
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}
	if err := models.AutoMigrate(models.DB); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// seed data carries its own addresses
	cfg.Geocoding.Enabled = false
	cfg.Queue.Enabled = false
	c := provider.NewContainer(cfg)
	ctx := context.Background()

	ids := make([]uint, 0, len(users))
	for _, u := range users {
		id, created, err := ensureUser(c, u, password)
		if err != nil {
			stdLog.Fatalf("Failed to seed user %s: %v", u.Email, err)
		}
		if created {
			stdLog.Printf("Created user: %s (id=%d)", u.Email, id)
		} else {
			stdLog.Printf("User already exists: %s (id=%d)", u.Email, id)
		}
		if _, err := c.ProfileService.UpdateLocation(ctx, id, u.Lat, u.Lng, 10); err != nil {
			stdLog.Printf("Failed to set location for %s: %v", u.Email, err)
		}
		if u.Partner {
			if _, err := c.ProfileService.SetAvailability(id, true); err != nil {
				stdLog.Printf("Failed to set availability for %s: %v", u.Email, err)
			}
		}
		ids = append(ids, id)
	}

	sender := ids[0]
	_, total, err := c.DeliveryService.List(sender, service.ListDeliveriesInput{Role: constants.RoleSender, Page: 1, PageSize: 1})
	if err != nil {
		stdLog.Fatalf("Failed to list deliveries: %v", err)
	}
	if total > 0 {
		stdLog.Printf("Deliveries already seeded for %s, skipping", users[0].Email)
		return
	}
	for _, d := range deliveries {
		source, destination := d.Source, d.Destination
		delivery, err := c.DeliveryService.Create(ctx, sender, service.CreateDeliveryInput{
			ItemName:    d.ItemName,
			Phone:       d.Phone,
			Amount:      models.NewMoneyFromFloat(d.Amount),
			TimeLimit:   d.TimeLimit,
			Source:      &source,
			Destination: &destination,
		})
		if err != nil {
			stdLog.Printf("Failed to create delivery %q: %v", d.ItemName, err)
			continue
		}
		stdLog.Printf("Created delivery: %s (id=%d, %.1f km)", delivery.ItemName, delivery.ID, delivery.Distance)
	}
	stdLog.Printf("Seed completed")
}

func ensureUser(c *provider.Container, u seedUser, password string) (uint, bool, error) {
	existing, err := c.AccountRepo.GetByEmail(u.Email)
	if err != nil {
		return 0, false, err
	}
	if existing != nil {
		return existing.ID, false, nil
	}
	result, err := c.AuthService.Register(service.RegisterInput{
		Email:    u.Email,
		Password: password,
		FullName: u.FullName,
		Phone:    u.Phone,
	})
	if err != nil {
		return 0, false, err
	}
	return result.Account.ID, true, nil
}
