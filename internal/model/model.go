package model

import (
	"database/sql"
	"time"
)

type Side string

const (
	SideExporter Side = "exporter"
	SideImporter Side = "importer"
)

const ContinentAfrica = "Africa"

type TradeRecord struct {
	Year              int16
	Exporter          string
	Importer          string
	CommodityCode     string
	Value             float64
	Quantity          sql.NullFloat64
	ImporterContinent string
	ExporterContinent string
}

func (r TradeRecord) Continent(side Side) string {
	if side == SideImporter {
		return r.ImporterContinent
	}
	return r.ExporterContinent
}

type Country struct {
	ISO3      string
	Name      string
	Continent string
	EU27      bool
	G20       bool
	Aliases   []string
}

type PricePoint struct {
	Period    time.Time
	Commodity string
	Price     sql.NullFloat64
}

type IndicatorValue struct {
	Indicator string
	ISO3      string
	Year      int
	Value     float64
}

type Label struct {
	Kind  string
	ISO3  string
	Value string
}

// PriceSnapshot names one of the two price points a quantity is valued at.
type PriceSnapshot string

const (
	SnapshotReference PriceSnapshot = "pre_crisis"
	SnapshotLatest    PriceSnapshot = "latest"
)

type Run struct {
	ID         string
	Command    string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      int
}
