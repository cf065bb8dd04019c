// Copyright (C) 2025 Josh Simonot
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"roboburn/internal/chart"
	"roboburn/internal/dashboard"
	"roboburn/internal/metrics"
	"roboburn/internal/mqttpub"
	"roboburn/internal/poller"
	"roboburn/internal/readout"
	"roboburn/pkg/appctx"
	"roboburn/pkg/logger"
	"roboburn/pkg/rootserv"
	"roboburn/pkg/service"
	"roboburn/pkg/sysmon"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll the controller and serve the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.conf.HTTPAddr
			}
			code, err := a.serve(cmd.Context(), addr)
			if err != nil {
				return err
			}
			if code != 0 {
				logger.Close()
				os.Exit(code)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config http_addr)")
	return cmd
}

func (a *app) serve(parent context.Context, addr string) (int, error) {
	c, err := a.newClient()
	if err != nil {
		return 0, err
	}
	bus := a.conf.EventBus
	defer bus.Close()

	ctx, ctxCancel := appctx.New(parent)
	defer ctxCancel()

	// init services
	pollService := poller.New(c, poller.WithInterval(a.conf.PollInterval()))
	chartFeed := chart.New(bus)
	readoutFeed := readout.New(c, bus)
	metricsService := metrics.New()
	dashboardService := dashboard.New(bus, chartFeed, readoutFeed)
	server := rootserv.New(addr)
	sysMonitorService := sysmon.New(a.path("var"))

	// consumers, in delivery order
	pollService.Register(chartFeed)
	pollService.Register(readoutFeed)
	pollService.Register(metricsService)

	services := []service.Runnable{pollService, dashboardService, server}

	if a.conf.MQTT.Broker != "" {
		mqttService := mqttpub.New(a.conf.MQTT)
		pollService.Register(mqttService)
		services = append(services, mqttService)
	}

	sysMonitorService.AddSection("poller", func() any { return pollService.Stats() })
	sysMonitorService.AddSection("eventbus", func() any { return bus.Stats() })
	sysMonitorService.AddSection("dashboard", func() any {
		return map[string]int{"clients": dashboardService.Clients()}
	})
	sysMonitorService.AddSection("controller", func() any {
		return map[string]string{"endpoint": c.Endpoint()}
	})

	// attach web handler enabled services
	server.Attach("/dashboard", "Burner Dashboard", dashboardService.Handler())
	server.Attach("/logger", "Logger", logger.WebService("/logger"))
	server.Attach("/monitor", "System Monitor", sysMonitorService)
	server.Attach("/metrics", "Prometheus Metrics", metricsService.Handler())
	server.SetHome("/dashboard/")

	a.log.Info("polling %s every %v", c.Endpoint(), a.conf.PollInterval())
	fmt.Printf("dashboard on %s/dashboard/\n", displayAddr(addr))

	// start runnable services
	exitCh := service.Start(ctx, ctxCancel, services)

	// waits for all services to stop
	code := <-exitCh
	readoutFeed.Wait()
	return code, nil
}

func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
