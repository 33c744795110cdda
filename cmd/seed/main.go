// Package main seeds the database with an administrator and, optionally,
// a demo project with staff and material deliveries.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"sitetrack/internal/app"
	"sitetrack/internal/core/apperror"
	appctx "sitetrack/internal/core/context"
	"sitetrack/internal/core/types"
	"sitetrack/internal/domain/employees"
	"sitetrack/internal/domain/materials"
	"sitetrack/internal/domain/projects"
	"sitetrack/pkg/logger"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	demo := flag.Bool("demo", false, "also create a demo project with staff and materials")
	adminEmail := flag.String("admin-email", "", "administrator email (overrides auth.bootstrap_admin.email)")
	adminPassword := flag.String("admin-password", "", "administrator password (overrides auth.bootstrap_admin.password)")
	flag.Parse()

	if err := run(*configPath, *demo, *adminEmail, *adminPassword); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, demo bool, email, password string) error {
	ctx := context.Background()

	rt, err := app.Init(ctx, configPath, "seed")
	if err != nil {
		return err
	}
	defer rt.Close()

	services, err := app.NewServices(ctx, rt, nil)
	if err != nil {
		return err
	}
	defer services.Close()

	boot := rt.Config.Auth.BootstrapAdmin
	if email == "" {
		email = boot.Email
	}
	if password == "" {
		password = boot.Password
	}
	if email == "" || password == "" {
		return fmt.Errorf("administrator email and password are required")
	}
	name := boot.FullName
	if name == "" {
		name = "Administrator"
	}

	created, err := services.Auth.EnsureBootstrapAdmin(ctx, email, password, name)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	rt.Log.Infow("admin user", "email", email, "created", created)

	if demo {
		ctx = appctx.WithUser(ctx, &appctx.UserContext{FullName: "seed", Role: "admin", IsAdmin: true})
		if err := seedDemo(ctx, services, rt.Location); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	rt.Log.Info("seeding completed")
	return nil
}

func seedDemo(ctx context.Context, s *app.Services, loc *time.Location) error {
	project, err := s.Projects.GetByCode(ctx, "DEMO-1")
	if apperror.IsNotFound(err) {
		project = projects.NewProject("DEMO-1", "Riverside Residences")
		project.Location = "12 Riverside Rd"
		project.Client = "Demo Developers Ltd"
		project.Status = projects.StatusActive
		project.Budget = types.MustMoney("2500000")
		err = s.Projects.Create(ctx, project)
	}
	if err != nil {
		return fmt.Errorf("project: %w", err)
	}

	staff := []struct {
		code, name, position, wage string
	}{
		{"E-001", "Ravi Kumar", "Mason", "900"},
		{"E-002", "Anita Das", "Site engineer", "1800"},
		{"E-003", "Joseph Mathew", "Helper", "550"},
	}
	for _, st := range staff {
		if _, err := s.Employees.GetByCode(ctx, st.code); err == nil {
			continue
		} else if !apperror.IsNotFound(err) {
			return err
		}
		e := employees.NewEmployee(st.code, st.name)
		e.Position = st.position
		e.DailyWage = types.MustMoney(st.wage)
		e.ProjectID = &project.ID
		if err := s.Employees.Create(ctx, e); err != nil {
			return fmt.Errorf("employee %s: %w", st.code, err)
		}
	}

	available, err := s.Materials.TotalAvailable(ctx, "CEM1")
	if err != nil {
		return err
	}
	if available.IsPositive() {
		logger.Info(ctx, "demo materials already present", "code", "CEM1", "available", available.String())
		return nil
	}

	now := time.Now().In(loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 9, 0, 0, 0, loc)
	deliveries := []materials.AddBatchRequest{
		{MaterialCode: "CEM1", Name: "Cement OPC 53", Quantity: types.NewQuantity(100), Amount: types.MustMoney("385"), Date: monthStart},
		{MaterialCode: "CEM1", Name: "Cement OPC 53", Quantity: types.NewQuantity(50), Amount: types.MustMoney("392"), Date: monthStart.AddDate(0, 0, 4)},
		{MaterialCode: "STL8", Name: "TMT bar 8mm", Quantity: types.NewQuantity(2000), Amount: types.MustMoney("62.5"), Date: monthStart.AddDate(0, 0, 1)},
	}
	for _, d := range deliveries {
		d.ProjectID = project.ID
		d.AddedBy = "seed"
		if _, err := s.Materials.AddBatch(ctx, d); err != nil {
			return fmt.Errorf("batch %s: %w", d.MaterialCode, err)
		}
	}

	logger.Info(ctx, "demo data created", "project", project.Code)
	return nil
}
