package models_test

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pedalhouse/bikestock_backend/models"
)

func TestSerialReservationSequenceAndPeek(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	serials, err := models.ReserveSerials(ctx, 3)
	if err != nil {
		t.Fatalf("ReserveSerials: %v", err)
	}
	want := []string{"BIKE-00001", "BIKE-00002", "BIKE-00003"}
	for i := range want {
		if serials[i] != want[i] {
			t.Errorf("serial %d = %s, want %s", i, serials[i], want[i])
		}
	}

	// Peek previews without advancing: two peeks in a row agree, and the
	// next reservation still starts where the peek said it would.
	peeked, err := models.PeekSerials(ctx, 2)
	if err != nil {
		t.Fatalf("PeekSerials: %v", err)
	}
	if peeked[0] != "BIKE-00004" || peeked[1] != "BIKE-00005" {
		t.Fatalf("peek = %v, want [BIKE-00004 BIKE-00005]", peeked)
	}
	peekedAgain, err := models.PeekSerials(ctx, 2)
	if err != nil {
		t.Fatalf("second PeekSerials: %v", err)
	}
	if peekedAgain[0] != peeked[0] {
		t.Errorf("peek advanced the counter: %v then %v", peeked, peekedAgain)
	}
	next, err := models.ReserveSerials(ctx, 1)
	if err != nil {
		t.Fatalf("ReserveSerials after peek: %v", err)
	}
	if next[0] != "BIKE-00004" {
		t.Errorf("reservation after peek = %s, want BIKE-00004", next[0])
	}

	// Admin reset moves the counter wherever the operator says.
	if err := models.SetSerialCounter(ctx, 100000); err != nil {
		t.Fatalf("SetSerialCounter: %v", err)
	}
	wide, err := models.ReserveSerials(ctx, 1)
	if err != nil {
		t.Fatalf("ReserveSerials after reset: %v", err)
	}
	// Numbers past five digits widen naturally instead of wrapping.
	if wide[0] != "BIKE-100000" {
		t.Errorf("serial after reset = %s, want BIKE-100000", wide[0])
	}

	if err := models.SetSerialCounter(ctx, 0); err == nil {
		t.Errorf("SetSerialCounter accepted 0")
	}
	if _, err := models.ReserveSerials(ctx, 0); err == nil {
		t.Errorf("ReserveSerials accepted 0")
	}
}

func TestConcurrentSerialReservationsAreDisjoint(t *testing.T) {
	ctx := setupIntegrationEnv(t)

	const workers = 8
	const perWorker = 5

	var wg sync.WaitGroup
	results := make([][]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = models.ReserveSerials(ctx, perWorker)
		}(i)
	}
	wg.Wait()

	var all []string
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if len(results[i]) != perWorker {
			t.Fatalf("worker %d got %d serials", i, len(results[i]))
		}
		all = append(all, results[i]...)
	}

	// No duplicates, no gaps: together the workers must hold exactly
	// 1..workers*perWorker.
	nums := make([]int, 0, len(all))
	for _, s := range all {
		raw := strings.TrimPrefix(s, "BIKE-")
		n, err := strconv.Atoi(raw)
		if err != nil {
			t.Fatalf("unparseable serial %q", s)
		}
		nums = append(nums, n)
	}
	sort.Ints(nums)
	for i, n := range nums {
		if n != i+1 {
			t.Fatalf("serial sequence broken at index %d: %v", i, nums)
		}
	}

	counter, err := models.GetNextSerial(ctx)
	if err != nil {
		t.Fatalf("GetNextSerial: %v", err)
	}
	if counter != int64(workers*perWorker+1) {
		t.Errorf("next serial = %d, want %d", counter, workers*perWorker+1)
	}
}
