package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/mizuna-io/mizuna/internal/remote/transport"
)

// fetchFunc performs one fetch and returns a function that writes the
// decoded values into a snapshot.
type fetchFunc func(ctx context.Context, caller transport.Caller) (func(*Snapshot), error)

type temperatureResponse struct {
	CPUTemp   *float64 `json:"cpu_temp"`
	GPUTemp   *float64 `json:"gpu_temp"`
	Timestamp *float64 `json:"timestamp"`
}

type uptimeResponse struct {
	AppUptime *struct {
		Formatted string `json:"formatted"`
	} `json:"app_uptime"`
}

type performanceResponse struct {
	RobotConnectivity *struct {
		RobotStatus string `json:"robot_status"`
		Stats       struct {
			AvgResponseTime *float64 `json:"avg_response_time"`
		} `json:"stats"`
	} `json:"robot_connectivity"`
	System *struct {
		CPU struct {
			Percent *float64 `json:"percent"`
		} `json:"cpu"`
		Disk struct {
			Percent *float64 `json:"percent"`
		} `json:"disk"`
	} `json:"system"`
}

func get(ctx context.Context, caller transport.Caller, path string, v any) error {
	raw, err := caller.Call(ctx, transport.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	return transport.Decode(http.MethodGet, path, raw, v)
}

func fetchTemperature(ctx context.Context, caller transport.Caller) (func(*Snapshot), error) {
	var resp temperatureResponse
	if err := get(ctx, caller, "/temperature", &resp); err != nil {
		return nil, err
	}
	if resp.CPUTemp == nil && resp.GPUTemp == nil {
		return nil, malformed("/temperature", "missing cpu_temp and gpu_temp")
	}
	return func(s *Snapshot) {
		s.CPUTemp = resp.CPUTemp
		s.GPUTemp = resp.GPUTemp
		if resp.Timestamp != nil {
			s.TemperatureAt = unixSeconds(*resp.Timestamp)
		}
	}, nil
}

func fetchUptime(ctx context.Context, caller transport.Caller) (func(*Snapshot), error) {
	var resp uptimeResponse
	if err := get(ctx, caller, "/uptime", &resp); err != nil {
		return nil, err
	}
	if resp.AppUptime == nil {
		return nil, malformed("/uptime", "missing app_uptime")
	}
	return func(s *Snapshot) {
		s.UptimeFormatted = resp.AppUptime.Formatted
	}, nil
}

func fetchPerformance(ctx context.Context, caller transport.Caller) (func(*Snapshot), error) {
	var resp performanceResponse
	if err := get(ctx, caller, "/performance", &resp); err != nil {
		return nil, err
	}
	if resp.RobotConnectivity == nil {
		return nil, malformed("/performance", "missing robot_connectivity")
	}
	return func(s *Snapshot) {
		s.RobotStatus = resp.RobotConnectivity.RobotStatus
		s.AvgResponseTimeMs = resp.RobotConnectivity.Stats.AvgResponseTime
		// system is optional; load and disk keep their prior values without it.
		if resp.System != nil {
			s.SystemLoadPercent = resp.System.CPU.Percent
			s.DiskUsagePercent = resp.System.Disk.Percent
		}
	}, nil
}

func malformed(path, msg string) error {
	return &transport.Error{Kind: transport.KindMalformedResponse, Method: http.MethodGet, Path: path, Message: msg}
}

func unixSeconds(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}
