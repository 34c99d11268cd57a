package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"fulfillment-sim/internal/domain"
)

// Column layouts for the network definition files. Both files carry a
// header row naming the columns in this order.
const (
	nodeHeader = "node_id,location,type,daily_capacity"
	laneHeader = "source,target,distance_km,cost_per_kg,transit_minutes"
)

// LoadNodesCSV reads the fulfillment node list.
func LoadNodesCSV(path string) ([]domain.Node, error) {
	rows, err := readCSV(path, nodeHeader)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	nodes := make([]domain.Node, 0, len(rows))
	for i, row := range rows {
		capacity, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("load nodes: row %d: invalid daily_capacity %q: %w", i+2, row[3], err)
		}
		nodes = append(nodes, domain.Node{
			ID:            strings.TrimSpace(row[0]),
			Location:      strings.TrimSpace(row[1]),
			Type:          strings.TrimSpace(row[2]),
			DailyCapacity: capacity,
		})
	}
	return nodes, nil
}

// LoadLanesCSV reads the directed lane list.
func LoadLanesCSV(path string) ([]domain.Lane, error) {
	rows, err := readCSV(path, laneHeader)
	if err != nil {
		return nil, fmt.Errorf("load lanes: %w", err)
	}

	lanes := make([]domain.Lane, 0, len(rows))
	for i, row := range rows {
		distance, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("load lanes: row %d: invalid distance_km %q: %w", i+2, row[2], err)
		}
		cost, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("load lanes: row %d: invalid cost_per_kg %q: %w", i+2, row[3], err)
		}
		transit, err := strconv.ParseFloat(strings.TrimSpace(row[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("load lanes: row %d: invalid transit_minutes %q: %w", i+2, row[4], err)
		}
		lanes = append(lanes, domain.Lane{
			From:           strings.TrimSpace(row[0]),
			To:             strings.TrimSpace(row[1]),
			DistanceKm:     distance,
			CostPerKg:      cost,
			TransitMinutes: transit,
		})
	}
	return lanes, nil
}

// LoadGraphCSV builds the initial graph version from a node file and a
// lane file.
func LoadGraphCSV(nodesPath, lanesPath string) (*domain.GraphVersion, error) {
	nodes, err := LoadNodesCSV(nodesPath)
	if err != nil {
		return nil, err
	}
	lanes, err := LoadLanesCSV(lanesPath)
	if err != nil {
		return nil, err
	}
	return domain.BuildInitial(nodes, lanes)
}

func readCSV(path, wantHeader string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %q: %w", path, err)
	}
	if got := strings.Join(header, ","); got != wantHeader {
		return nil, fmt.Errorf("file %q: header %q, want %q", path, got, wantHeader)
	}

	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
