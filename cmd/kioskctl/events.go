package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/kiosk-fleet-core/internal/device"
	"github.com/nerrad567/kiosk-fleet-core/internal/infrastructure/mqtt"
)

func (a *app) eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow fleet events on the MQTT bus until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.MQTT.Enabled {
				return errors.New("mqtt is disabled in the configuration")
			}

			mcfg := cfg.MQTT
			mcfg.Broker.ClientID = fmt.Sprintf("%s-ctl-%s", mcfg.Broker.ClientID, uuid.NewString()[:8])

			client, err := mqtt.ConnectObserver(mcfg)
			if err != nil {
				return err
			}
			defer client.Close() //nolint:errcheck // observer has nothing to flush

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			err = client.SubscribeEvents(func(_ string, ev device.Event) error {
				mu.Lock()
				defer mu.Unlock()
				_, err := fmt.Fprintf(out, "%s  %-24s %-18s %s\n",
					ev.Time.Local().Format("15:04:05"), ev.Kind, orDash(ev.DeviceID+ev.Code), orDash(ev.Name))
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "following %s (Ctrl+C to stop)\n", client.Topics().AllEvents())
			<-cmd.Context().Done()
			return nil
		},
	}
}
