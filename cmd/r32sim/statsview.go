package main

import (
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/sirupsen/logrus"
)

const (
	statsviewAddr = "localhost:12600"
	statsviewURL  = "http://" + statsviewAddr + "/debug/statsview"
)

// launchStatsview serves Go runtime charts for the lifetime of the process.
func launchStatsview(log logrus.FieldLogger) {
	go func() {
		viewer.SetConfiguration(viewer.WithAddr(statsviewAddr))
		mgr := statsview.New()
		log.WithField("url", statsviewURL).Info("statsview listening")
		mgr.Start()
	}()
}
