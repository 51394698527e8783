package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateReservationItems(t *testing.T) {
	tests := []struct {
		name     string
		items    []ReservationItem
		errCount int
	}{
		{name: "valid", items: []ReservationItem{{ProductID: "P1", Quantity: 1}}, errCount: 0},
		{name: "empty", items: nil, errCount: 1},
		{name: "missing product", items: []ReservationItem{{Quantity: 1}}, errCount: 1},
		{name: "zero quantity", items: []ReservationItem{{ProductID: "P1"}}, errCount: 1},
		{name: "all fields missing", items: []ReservationItem{{}}, errCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateReservationItems(tt.items)
			if len(errs) != tt.errCount {
				t.Errorf("expected %d errors, got %d: %v", tt.errCount, len(errs), errs)
			}
		})
	}
}

func TestPromotion_Eligible(t *testing.T) {
	promo := Promotion{ID: "promo-1", Active: true, ProductIDs: []string{"P1", "P3"}}
	if !promo.Eligible("P3") {
		t.Error("P3 should be eligible")
	}
	if promo.Eligible("P2") {
		t.Error("P2 should not be eligible")
	}
}

func TestChargeRequest_Validate(t *testing.T) {
	ok := ChargeRequest{Amount: decimal.NewFromInt(5), CustomerID: "c1", Currency: "usd"}
	if errs := ok.Validate(); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	zero := ChargeRequest{Amount: decimal.Zero, CustomerID: "c1"}
	if errs := zero.Validate(); len(errs) != 1 {
		t.Fatalf("expected 1 error for zero amount, got %v", errs)
	}
	noCustomer := ChargeRequest{Amount: decimal.NewFromInt(5)}
	if errs := noCustomer.Validate(); len(errs) != 1 {
		t.Fatalf("expected 1 error for missing customer, got %v", errs)
	}
}

func TestAggregateDemand(t *testing.T) {
	demand := AggregateDemand([]ReservationItem{
		{ProductID: "P2", Quantity: 1},
		{ProductID: "P1", Quantity: math.MaxInt32},
		{ProductID: "P1", Quantity: math.MaxInt32},
		{ProductID: "P2", Quantity: 2},
	})
	if len(demand) != 2 || demand[0].ProductID != "P1" || demand[1].ProductID != "P2" {
		t.Fatalf("unexpected demand: %+v", demand)
	}
	if demand[0].Quantity != 2*int64(math.MaxInt32) {
		t.Fatalf("sum must not wrap, got %d", demand[0].Quantity)
	}
	if demand[0].CoveredBy(math.MaxInt32) {
		t.Fatal("demand above MaxInt32 can never be covered")
	}
	if demand[0].Requested() != math.MaxInt32 {
		t.Fatalf("requested must be clamped, got %d", demand[0].Requested())
	}
	if !demand[1].CoveredBy(3) || demand[1].CoveredBy(2) {
		t.Fatal("P2 demand of 3 must be covered by exactly 3")
	}
	if (StockDemand{ProductID: "P3"}).CoveredBy(10) {
		t.Fatal("zero demand must not be covered")
	}
	if item := demand[1].Item(); item.ProductID != "P2" || item.Quantity != 3 {
		t.Fatalf("unexpected item: %+v", item)
	}
}
