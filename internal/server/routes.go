package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/process"

	"github.com/ImranAdan/computational-benchmarks/internal/metrics"
	"github.com/ImranAdan/computational-benchmarks/pkg/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	// 控制连接不做认证，任何来源都允许
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Stats /api/stats 返回的运行状态
type Stats struct {
	Engine        uint32  `json:"engine"`
	EngineName    string  `json:"engineName"`
	TargetFPS     uint32  `json:"fps"`
	Points        uint32  `json:"points"`
	Capacity      int     `json:"capacity"`
	Subscribers   int     `json:"subscribers"`
	Ticks         uint64  `json:"ticks"`
	Frames        uint64  `json:"frames"`
	Dropped       uint64  `json:"dropped"`
	LastLatencyUS float32 `json:"lastLatencyUs"`
	Native        bool    `json:"native"`
}

// Resource /api/resource 返回的进程资源占用
type Resource struct {
	CPUPercent float64 `json:"cpu"`
	MemorySize uint64  `json:"memory"`
}

// Handler 返回 HTTP 路由
func (s *StreamServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/ws", s.serveWS)
	r.HandleFunc("/api/stats", s.serveStats).Methods(http.MethodGet)
	r.HandleFunc("/api/resource", s.serveResource).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir(s.opts.StaticDir))),
	).Methods(http.MethodGet)
	r.HandleFunc("/", s.serveIndex).Methods(http.MethodGet)

	return r
}

func (s *StreamServer) serveWS(w http.ResponseWriter, r *http.Request) {
	// 先登记再升级：http.Server.Shutdown 会等待尚未劫持的请求
	s.wg.Add(1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Done()
		s.log.Info("WebSocket 升级失败", "remote", r.RemoteAddr, "err", err.Error())
		return
	}

	connection := NewConnection(newWSTransport(conn), s.hub, s.newIngress, s.log)
	connection.Handle(s.ctx, &s.wg)
}

func (s *StreamServer) serveIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(s.opts.StaticDir, "index.html"))
}

func (s *StreamServer) serveStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.Stats())
}

func (s *StreamServer) serveResource(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, Resource{CPUPercent: cpuPercent, MemorySize: memInfo.RSS})
}

// Stats 汇总配置、分发和调度统计
func (s *StreamServer) Stats() Stats {
	snap := s.cfg.Snapshot()
	hub := s.hub.Stats()
	sched := s.scheduler.Stats()

	return Stats{
		Engine:        snap.Engine,
		EngineName:    engine.ID(snap.Engine).String(),
		TargetFPS:     snap.TargetFPS,
		Points:        uint32(snap.Points),
		Capacity:      s.store.Capacity(),
		Subscribers:   hub.Subscribers,
		Ticks:         sched.Ticks,
		Frames:        sched.Packaged,
		Dropped:       hub.Dropped,
		LastLatencyUS: sched.LastLatencyUS,
		Native:        engine.NativeAvailable,
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
