package main

import (
	"context"
	"log"
	"time"

	"lead-manager-backend/internal/auth"
	"lead-manager-backend/internal/config"
	"lead-manager-backend/internal/db"
	"lead-manager-backend/internal/parser"
	"lead-manager-backend/internal/products"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedProduct struct {
	Name     string
	Category string
}

type seedAgent struct {
	Name      string
	CRMID     int
	StartHour int
	EndHour   int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	defaults := []seedProduct{
		{Name: "Pós-graduação", Category: products.CategoryPos},
		{Name: "Cursos técnicos", Category: products.CategoryTec},
		{Name: "Profissionalizantes", Category: products.CategoryVocation},
	}

	now := time.Now().In(cfg.Timezone)
	for _, p := range defaults {
		filter := bson.M{"category": p.Category}
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":                primitive.NewObjectID().Hex(),
				"name":               p.Name,
				"category":           p.Category,
				"active":             true,
				"attribution_filter": products.DefaultAttributionFilter(),
				"payment_filter":     products.DefaultPaymentFilter(),
				"column_map":         parser.DefaultColumnMap(),
				"agent_ids":          []string{},
				"crm_company_title":  "Unicesumar",
				"created_at":         now,
				"updated_at":         now,
			},
		}
		if _, err := cols.Products.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			log.Fatalf("seed error for %s: %v", p.Name, err)
		}
	}

	sampleAgents := []seedAgent{
		{Name: "Consultor Manhã", CRMID: 1, StartHour: 8, EndHour: 14},
		{Name: "Consultor Tarde", CRMID: 2, StartHour: 12, EndHour: 18},
		{Name: "Consultor Noite", CRMID: 3, StartHour: 14, EndHour: 21},
	}
	for _, a := range sampleAgents {
		filter := bson.M{"crm_id": a.CRMID}
		update := bson.M{
			"$setOnInsert": bson.M{
				"_id":        primitive.NewObjectID().Hex(),
				"name":       a.Name,
				"crm_id":     a.CRMID,
				"start_hour": a.StartHour,
				"end_hour":   a.EndHour,
				"active":     true,
				"created_at": now,
				"updated_at": now,
			},
		}
		if _, err := cols.Agents.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			log.Fatalf("seed error for %s: %v", a.Name, err)
		}
	}

	if cfg.AdminPassword == "" {
		log.Println("seed admin: ADMIN_PASSWORD missing, skipping")
	} else if err := seedAdminUser(ctx, cols, cfg.AdminEmail, cfg.AdminPassword, cfg.Timezone); err != nil {
		log.Fatalf("seed admin error: %v", err)
	}

	log.Println("seed completed")
}

func seedAdminUser(ctx context.Context, cols *db.Collections, email, password string, loc *time.Location) error {
	if email == "" || password == "" {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().In(loc)
	update := bson.M{
		"$set": bson.M{
			"password_hash": hash,
			"role":          "admin",
			"active":        true,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"_id":        primitive.NewObjectID().Hex(),
			"email":      email,
			"full_name":  "Administrador",
			"created_at": now,
		},
	}
	_, err = cols.Users.UpdateOne(ctx, bson.M{"email": email}, update, options.Update().SetUpsert(true))
	return err
}
