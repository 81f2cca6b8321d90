// Package monitoring turns a running agent into a small web server so that
// the accumulated stats and the recent transactions can be inspected from a
// browser while the instrumented application runs.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/txcore/metrics"
)

// Monitor exposes an agent's state over HTTP.
type Monitor struct {
	portNumber int
	stats      *metrics.StatsEngine
	recent     *RecentRing
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n",
			portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterStatsEngine registers the stats engine to serve snapshots from.
func (m *Monitor) RegisterStatsEngine(e *metrics.StatsEngine) {
	m.stats = e
}

// RegisterRecent registers the ring of recently finished transactions.
func (m *Monitor) RegisterRecent(r *RecentRing) {
	m.recent = r
}

// StartServer starts the monitor as a web server.
func (m *Monitor) StartServer() {
	m.startServer()
}

// StartServerWithBrowser starts the monitor and opens the dashboard in the
// default browser.
func (m *Monitor) StartServerWithBrowser() {
	url := m.startServer()

	err := browser.OpenURL(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open browser: %s\n", err)
	}
}

func (m *Monitor) startServer() string {
	r := mux.NewRouter()

	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/transactions", m.listTransactions)
	r.HandleFunc("/api/transactions/{guid}", m.transactionDetails)
	r.HandleFunc("/api/resource", m.listResources)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring transactions with %s\n", url)

	go func() {
		err = http.Serve(listener, r)
		dieOnErr(err)
	}()

	return url
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	snapshot := []metrics.NamedStat{}
	if m.stats != nil {
		snapshot = m.stats.Snapshot()
	}

	bytes, err := json.Marshal(snapshot)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

type transactionRsp struct {
	GUID       string  `json:"guid"`
	Name       string  `json:"name"`
	IsWeb      bool    `json:"is_web"`
	DurationMs float64 `json:"duration_ms"`
	Sampled    bool    `json:"sampled"`
	Failed     bool    `json:"failed"`
}

func (m *Monitor) listTransactions(w http.ResponseWriter, _ *http.Request) {
	rsp := []transactionRsp{}

	if m.recent != nil {
		for _, p := range m.recent.All() {
			rsp = append(rsp, transactionRsp{
				GUID:       p.GUID,
				Name:       p.Name,
				IsWeb:      p.IsWeb,
				DurationMs: float64(p.Duration) / float64(time.Millisecond),
				Sampled:    p.Sampled,
				Failed:     p.Error,
			})
		}
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func (m *Monitor) transactionDetails(w http.ResponseWriter, r *http.Request) {
	guid := mux.Vars(r)["guid"]

	var payload any
	if m.recent != nil {
		if p := m.recent.Find(guid); p != nil {
			payload = p
		}
	}

	if payload == nil {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Transaction not found"))
		dieOnErr(err)

		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(payload)
	serializer.SetMaxDepth(2)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	proc, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memorySize, err := proc.MemoryInfo()
	dieOnErr(err)

	rsp := resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	}

	bytes, err := json.Marshal(rsp)
	dieOnErr(err)

	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
