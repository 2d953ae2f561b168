package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pedalhouse/bikestock_backend/config"
	"github.com/pedalhouse/bikestock_backend/models"
	"github.com/pedalhouse/bikestock_backend/utils"
	"github.com/shopspring/decimal"
)

func TestInvoiceApprovalCreatesBikesWithAllocatedCosts(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	verve, err := models.CreateProduct(ctx, &models.NewProduct{
		Brand:       "Trek",
		Model:       "Verve 3",
		Color:       "Red",
		Size:        "Large",
		RetailPrice: decimal.RequireFromString("899.99"),
	})
	if err != nil {
		t.Fatalf("CreateProduct verve: %v", err)
	}
	rockhopper, err := models.CreateProduct(ctx, &models.NewProduct{
		Brand:       "Specialized",
		Model:       "Rockhopper",
		Color:       "Blue",
		Size:        "Medium",
		RetailPrice: decimal.RequireFromString("1249.99"),
	})
	if err != nil {
		t.Fatalf("CreateProduct rockhopper: %v", err)
	}

	// Line items carry only the raw parsed attributes; matching against the
	// catalog happens at create time.
	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		Supplier:         "Trek Distribution",
		InvoiceReference: "INV-1001",
		ShippingCost:     decimal.RequireFromString("60.00"),
		LineItems: []*models.NewInvoiceLineItem{
			{
				Quantity:  1,
				UnitCost:  decimal.RequireFromString("500.00"),
				TotalCost: decimal.RequireFromString("500.00"),
				RawBrand:  "Trek",
				RawModel:  "Verve 3",
				RawColor:  "Red",
				RawSize:   "Large",
			},
			{
				Quantity:  2,
				UnitCost:  decimal.RequireFromString("800.00"),
				TotalCost: decimal.RequireFromString("1600.00"),
				RawBrand:  "Specialized",
				RawModel:  "Rockhopper",
				RawColor:  "Blue",
				RawSize:   "Medium",
			},
		},
	}, false)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if invoice.Status != models.InvoiceStatusPending {
		t.Fatalf("new invoice status = %s, want pending", invoice.Status)
	}
	if len(invoice.LineItems) != 2 {
		t.Fatalf("line items = %d, want 2", len(invoice.LineItems))
	}
	for i, li := range invoice.LineItems {
		if li.ProductId == nil {
			t.Fatalf("line item %d was not pre-matched", i)
		}
	}
	if *invoice.LineItems[0].ProductId != verve.ID {
		t.Errorf("line item 0 matched product %d, want %d", *invoice.LineItems[0].ProductId, verve.ID)
	}
	if *invoice.LineItems[1].ProductId != rockhopper.ID {
		t.Errorf("line item 1 matched product %d, want %d", *invoice.LineItems[1].ProductId, rockhopper.ID)
	}

	result, err := models.ApproveInvoice(ctx, invoice.ID, "ops@test.local")
	if err != nil {
		t.Fatalf("ApproveInvoice: %v", err)
	}
	if result.Invoice.Status != models.InvoiceStatusApproved {
		t.Fatalf("approved invoice status = %s", result.Invoice.Status)
	}
	if result.Invoice.ApprovedBy == nil || *result.Invoice.ApprovedBy != "ops@test.local" {
		t.Errorf("approved_by not recorded: %v", result.Invoice.ApprovedBy)
	}
	if len(result.Bikes) != 3 {
		t.Fatalf("bikes created = %d, want 3", len(result.Bikes))
	}

	// 60.00 shipping over 3 units = 20.00 each: 520.00 and 820.00 per unit.
	wantCosts := []string{"520", "820", "820"}
	wantSerials := []string{"BIKE-00001", "BIKE-00002", "BIKE-00003"}
	var total decimal.Decimal
	for i, bike := range result.Bikes {
		if bike.Status != models.BikeStatusInTransit {
			t.Errorf("bike %d status = %s, want in_transit", i, bike.Status)
		}
		if bike.SerialNumber != wantSerials[i] {
			t.Errorf("bike %d serial = %s, want %s", i, bike.SerialNumber, wantSerials[i])
		}
		if !bike.ActualCost.Equal(decimal.RequireFromString(wantCosts[i])) {
			t.Errorf("bike %d cost = %s, want %s", i, bike.ActualCost, wantCosts[i])
		}
		if bike.InvoiceId == nil || *bike.InvoiceId != invoice.ID {
			t.Errorf("bike %d not linked to invoice", i)
		}
		total = total.Add(bike.ActualCost)
	}
	if !total.Equal(decimal.RequireFromString("2160")) {
		t.Errorf("allocated total = %s, want 2160.00", total)
	}

	// Second approval must fail and must not mint more bikes.
	_, err = models.ApproveInvoice(ctx, invoice.ID, "ops@test.local")
	if err == nil {
		t.Fatalf("second approval succeeded")
	}
	appErr := utils.AsAppError(err)
	if appErr.Kind != utils.ErrorKindValidation {
		t.Errorf("second approval kind = %s, want validation", appErr.Kind)
	}
	if !strings.Contains(appErr.Message, "only pending invoices can be approved") {
		t.Errorf("second approval message = %q", appErr.Message)
	}
	bikes, err := models.ListBikes(ctx, models.BikeFilter{InvoiceId: &invoice.ID})
	if err != nil {
		t.Fatalf("ListBikes: %v", err)
	}
	if len(bikes) != 3 {
		t.Errorf("bike count after double approve = %d, want 3", len(bikes))
	}

	// Rejecting a terminal invoice fails the same way.
	if _, err := models.RejectInvoice(ctx, invoice.ID); err == nil {
		t.Errorf("reject after approve succeeded")
	}

	// Receiving flips the whole batch to available.
	ids := []int{bikes[0].ID, bikes[1].ID, bikes[2].ID}
	received, err := models.ReceiveBikes(ctx, ids)
	if err != nil {
		t.Fatalf("ReceiveBikes: %v", err)
	}
	for _, bike := range received {
		if bike.Status != models.BikeStatusAvailable {
			t.Errorf("bike %d status = %s after receive", bike.ID, bike.Status)
		}
		if bike.DateReceived == nil {
			t.Errorf("bike %d has no date_received", bike.ID)
		}
	}

	// A second receive must refuse the batch: none are in transit anymore.
	if _, err := models.ReceiveBikes(ctx, ids); err == nil {
		t.Errorf("re-receiving available bikes succeeded")
	}
}

func TestInvoiceApprovalRequiresMatchedLineItems(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		Supplier:         "Mystery Imports",
		InvoiceReference: "INV-2001",
		LineItems: []*models.NewInvoiceLineItem{
			{
				Quantity:  1,
				UnitCost:  decimal.RequireFromString("400.00"),
				TotalCost: decimal.RequireFromString("400.00"),
				RawBrand:  "Unknown",
				RawModel:  "Nothing Like This",
			},
		},
	}, false)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if invoice.LineItems[0].ProductId != nil {
		t.Fatalf("line item matched against empty catalog")
	}

	_, err = models.ApproveInvoice(ctx, invoice.ID, "ops@test.local")
	if err == nil {
		t.Fatalf("approval with unmatched line item succeeded")
	}
	appErr := utils.AsAppError(err)
	if appErr.Kind != utils.ErrorKindValidation {
		t.Errorf("kind = %s, want validation", appErr.Kind)
	}
	if !strings.Contains(appErr.Message, "no matched product") {
		t.Errorf("message = %q", appErr.Message)
	}

	// The invoice must still be pending and approvable after a fix.
	got, err := models.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("GetInvoice: %v", err)
	}
	if got.Status != models.InvoiceStatusPending {
		t.Errorf("status after failed approval = %s, want pending", got.Status)
	}
}

func TestCreateInvoiceOverwriteSemantics(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	if _, err := models.CreateProduct(ctx, &models.NewProduct{
		Brand: "Trek", Model: "Verve 3", Color: "Red", Size: "Large",
	}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	newInvoice := func(supplier string) *models.NewInvoice {
		return &models.NewInvoice{
			Supplier:         supplier,
			InvoiceReference: "INV-3001",
			LineItems: []*models.NewInvoiceLineItem{
				{
					Quantity:  1,
					UnitCost:  decimal.RequireFromString("500.00"),
					TotalCost: decimal.RequireFromString("500.00"),
					RawBrand:  "Trek",
					RawModel:  "Verve 3",
					RawColor:  "Red",
					RawSize:   "Large",
				},
			},
		}
	}

	first, err := models.CreateInvoice(ctx, newInvoice("First Upload"), false)
	if err != nil {
		t.Fatalf("first CreateInvoice: %v", err)
	}

	// Duplicate reference without overwrite conflicts, and the details tell
	// the caller a retry with overwrite would work.
	_, err = models.CreateInvoice(ctx, newInvoice("Second Upload"), false)
	if err == nil {
		t.Fatalf("duplicate create succeeded without overwrite")
	}
	appErr := utils.AsAppError(err)
	if appErr.Kind != utils.ErrorKindConflict {
		t.Fatalf("kind = %s, want conflict", appErr.Kind)
	}
	if got, ok := appErr.Details["can_overwrite"].(bool); !ok || !got {
		t.Errorf("can_overwrite = %v, want true", appErr.Details["can_overwrite"])
	}
	if got, ok := appErr.Details["existing_id"].(int); !ok || got != first.ID {
		t.Errorf("existing_id = %v, want %d", appErr.Details["existing_id"], first.ID)
	}

	// Overwrite replaces the pending invoice under the same reference.
	second, err := models.CreateInvoice(ctx, newInvoice("Second Upload"), true)
	if err != nil {
		t.Fatalf("overwrite CreateInvoice: %v", err)
	}
	if second.ID == first.ID {
		t.Errorf("overwrite kept the old row id %d", first.ID)
	}
	if second.Supplier != "Second Upload" {
		t.Errorf("supplier = %s", second.Supplier)
	}
	if _, err := models.GetInvoice(ctx, first.ID); err == nil {
		t.Errorf("overwritten invoice %d still readable", first.ID)
	} else if utils.AsAppError(err).Kind != utils.ErrorKindNotFound {
		t.Errorf("overwritten invoice lookup kind = %s", utils.AsAppError(err).Kind)
	}

	// Once approved the reference is locked for good: no overwrite ever.
	if _, err := models.ApproveInvoice(ctx, second.ID, "ops@test.local"); err != nil {
		t.Fatalf("ApproveInvoice: %v", err)
	}
	_, err = models.CreateInvoice(ctx, newInvoice("Third Upload"), true)
	if err == nil {
		t.Fatalf("overwrite of approved invoice succeeded")
	}
	appErr = utils.AsAppError(err)
	if appErr.Kind != utils.ErrorKindConflict {
		t.Errorf("kind = %s, want conflict", appErr.Kind)
	}
	if got, ok := appErr.Details["can_overwrite"].(bool); !ok || got {
		t.Errorf("can_overwrite = %v, want false", appErr.Details["can_overwrite"])
	}
}

func TestPendingOnlyEdits(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	product, err := models.CreateProduct(ctx, &models.NewProduct{
		Brand: "Cannondale", Model: "Trail 8", Color: "Black", Size: "Small",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	invoice, err := models.CreateInvoice(ctx, &models.NewInvoice{
		Supplier:         "Cannondale Direct",
		InvoiceReference: "INV-4001",
		LineItems: []*models.NewInvoiceLineItem{
			{
				Quantity:  1,
				UnitCost:  decimal.RequireFromString("300.00"),
				TotalCost: decimal.RequireFromString("300.00"),
				RawBrand:  "Cannondale",
				RawModel:  "Trail 8",
				RawColor:  "Black",
				RawSize:   "Small",
			},
		},
	}, false)
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}

	shipping := decimal.RequireFromString("25.00")
	updated, err := models.UpdateInvoice(ctx, invoice.ID, &models.UpdateInvoiceInput{ShippingCost: &shipping})
	if err != nil {
		t.Fatalf("UpdateInvoice while pending: %v", err)
	}
	if !updated.ShippingCost.Equal(shipping) {
		t.Errorf("shipping = %s, want 25.00", updated.ShippingCost)
	}

	qty := 2
	updated, err = models.UpdateInvoiceLineItem(ctx, invoice.ID, invoice.LineItems[0].ID,
		&models.UpdateInvoiceLineItemInput{Quantity: &qty, ProductId: &product.ID})
	if err != nil {
		t.Fatalf("UpdateInvoiceLineItem while pending: %v", err)
	}
	if updated.LineItems[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", updated.LineItems[0].Quantity)
	}

	rejected, err := models.RejectInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("RejectInvoice: %v", err)
	}
	if rejected.Status != models.InvoiceStatusRejected {
		t.Fatalf("status = %s, want rejected", rejected.Status)
	}

	// No mutation works on a terminal invoice.
	if _, err := models.UpdateInvoice(ctx, invoice.ID, &models.UpdateInvoiceInput{ShippingCost: &shipping}); err == nil {
		t.Errorf("UpdateInvoice on rejected invoice succeeded")
	}
	if _, err := models.UpdateInvoiceLineItem(ctx, invoice.ID, invoice.LineItems[0].ID,
		&models.UpdateInvoiceLineItemInput{Quantity: &qty}); err == nil {
		t.Errorf("UpdateInvoiceLineItem on rejected invoice succeeded")
	}
	_, err = models.ApproveInvoice(ctx, invoice.ID, "ops@test.local")
	if err == nil {
		t.Fatalf("ApproveInvoice on rejected invoice succeeded")
	}
	if msg := utils.AsAppError(err).Message; !strings.Contains(msg, "only pending invoices can be approved") {
		t.Errorf("approve rejected message = %q", msg)
	}
}

// setupIntegrationEnv skips unless INTEGRATION_TESTS is set, then brings up
// throwaway mysql and redis containers, wires the config env, connects and
// migrates. Each test gets a fresh database.
func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "bikestock_test")
	t.Setenv("SERIAL_PREFIX", "BIKE")
	t.Setenv("STARTING_SERIAL", "1")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	if config.GetDB() == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	return context.Background()
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bikestock-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("bikestock-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=bikestock_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
