package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/jumpsim/internal/dynamo"
	"github.com/san-kum/jumpsim/internal/ensemble"
)

const (
	metadataFile = "metadata.json"
	summaryFile  = "summary.csv"
	statesFile   = "states.csv"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Timestamp    time.Time      `json:"timestamp"`
	Seed         int64          `json:"seed"`
	Algorithm    string         `json:"algorithm"`
	Dt           float64        `json:"dt"`
	Horizon      float64        `json:"horizon"`
	Mu           float64        `json:"mu"`
	Sigma        float64        `json:"sigma"`
	RhoMax       float64        `json:"rho_max"`
	Particles    int            `json:"particles"`
	Trajectories int            `json:"trajectories"`
	Mode         string         `json:"mode"`
	Succeeded    int            `json:"succeeded"`
	Failed       int            `json:"failed"`
	Elapsed      float64        `json:"elapsed_seconds"`
	Counters     map[string]int `json:"counters,omitempty"`
}

// NewMetadata fills the parameter fields of a RunMetadata.
func NewMetadata(name string, p *dynamo.Params) RunMetadata {
	return RunMetadata{
		Name:         name,
		Seed:         p.Seed,
		Algorithm:    p.Algorithm,
		Dt:           p.Dt,
		Horizon:      p.Horizon(),
		Mu:           p.Mu,
		Sigma:        p.Sigma,
		RhoMax:       p.RhoMax,
		Particles:    p.N,
		Trajectories: p.Trajectories,
	}
}

// Counters sums the scheduler diagnostics over the successful trajectories
// of a report.
func Counters(rep *ensemble.Report) map[string]int {
	c := map[string]int{}
	for _, o := range rep.Succeeded() {
		if o.Result == nil {
			continue
		}
		c["iterations"] += o.Result.Iterations
		c["candidates"] += o.Result.Candidates
		c["jumps"] += o.Result.Jumps
		c["rejections"] += o.Result.Rejections
		c["bound_violations"] += o.Result.BoundViolations
	}
	return c
}

// Save writes the metadata and the ensemble summary of a run and returns
// its ID.
func (s *Store) Save(meta RunMetadata, summary *ensemble.Summary) (string, error) {
	name := meta.Name
	if name == "" {
		name = "run"
	}
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = now
	meta.Mode = summary.Mode
	meta.Succeeded = summary.Count
	meta.Failed = summary.Failed

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSummary(filepath.Join(runDir, summaryFile), summary); err != nil {
		return "", err
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeSummary(path string, summary *ensemble.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"time"}
	for _, c := range summary.Channels {
		header = append(header, "mean_"+c, "var_"+c)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for k, t := range summary.Times {
		row := []string{formatFloat(t)}
		for c := range summary.Channels {
			row = append(row, formatFloat(summary.Mean[c][k]), formatFloat(summary.Variance[c][k]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// SaveStates writes a single trajectory's saved states next to a run.
func (s *Store) SaveStates(runID string, result *dynamo.Result) error {
	f, err := os.Create(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if len(result.States) > 0 {
		header := []string{"time"}
		for i := range result.States[0] {
			header = append(header, fmt.Sprintf("u%d", i+1))
		}
		if err := w.Write(header); err != nil {
			return err
		}
	}

	for i := range result.States {
		row := []string{formatFloat(result.Times[i])}
		for _, val := range result.States[i] {
			row = append(row, formatFloat(val))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// List returns every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadSummary reads a run's summary back. Count and Failed come from the
// metadata; failure messages are not persisted.
func (s *Store) LoadSummary(runID string) (*ensemble.Summary, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, summaryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: empty summary", runID)
	}

	header := records[0]
	if len(header) < 1 || header[0] != "time" || len(header)%2 != 1 {
		return nil, fmt.Errorf("run %s: malformed summary header %v", runID, header)
	}

	summary := &ensemble.Summary{
		Mode:      meta.Mode,
		Count:     meta.Succeeded,
		Failed:    meta.Failed,
		Particles: meta.Particles,
		Times:     make([]float64, 0, len(records)-1),
	}
	for i := 1; i < len(header); i += 2 {
		summary.Channels = append(summary.Channels, strings.TrimPrefix(header[i], "mean_"))
	}
	summary.Mean = make([][]float64, len(summary.Channels))
	summary.Variance = make([][]float64, len(summary.Channels))

	for line, record := range records[1:] {
		values := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("run %s: line %d: %w", runID, line+2, err)
			}
			values[j] = v
		}
		summary.Times = append(summary.Times, values[0])
		for c := range summary.Channels {
			summary.Mean[c] = append(summary.Mean[c], values[1+2*c])
			summary.Variance[c] = append(summary.Variance[c], values[2+2*c])
		}
	}

	return summary, nil
}

// LoadStates reads the states saved with SaveStates.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)

	for i := 1; i < len(records); i++ {
		record := records[i]

		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("run %s: line %d: %w", runID, i+1, err)
		}
		times = append(times, t)

		state := make([]float64, 0, len(record)-1)
		for j := 1; j < len(record); j++ {
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				return nil, nil, fmt.Errorf("run %s: line %d: %w", runID, i+1, err)
			}
			state = append(state, val)
		}
		states = append(states, state)
	}

	return states, times, nil
}
