// Command seed loads tenant fixtures into Valkey for local development:
// the bot registration, per-tenant client credentials, the tenant's
// installation record, and optionally a batch of subscriber settings.
//
// Usage:
//
//	go run ./cmd/seed \
//	  -valkey-addr localhost:6379 \
//	  -bot-id bot-1 -bot-secret shh -provider-domain 100 \
//	  -domain-id 400 -client-id cid -client-secret cs \
//	  -service-account sa@example -private-key-file key.pem \
//	  -subscribers subscribers.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/heatwatch/wbgt-alert-service/internal/adapter/valkeystore"
	"github.com/heatwatch/wbgt-alert-service/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	valkeyAddr := flag.String("valkey-addr", "localhost:6379", "valkey address")
	prefix := flag.String("prefix", "wbgt", "key prefix")

	botID := flag.String("bot-id", "", "bot ID (required)")
	botSecret := flag.String("bot-secret", "", "bot callback signing secret")
	providerDomain := flag.String("provider-domain", "", "bot provider domain ID")

	domainID := flag.String("domain-id", "", "tenant domain ID")
	clientID := flag.String("client-id", "", "OAuth client ID")
	clientSecret := flag.String("client-secret", "", "OAuth client secret")
	serviceAccount := flag.String("service-account", "", "token exchange service account")
	privateKeyFile := flag.String("private-key-file", "", "path to the tenant's PEM private key")

	subscribersFile := flag.String("subscribers", "", "optional JSON file with subscriber settings")
	flag.Parse()

	if *botID == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -bot-id")
	}

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{*valkeyAddr}})
	if err != nil {
		return fmt.Errorf("connect to valkey at %s: %w", *valkeyAddr, err)
	}
	defer client.Close()

	store := valkeystore.New(client, *prefix)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := store.BotInfos().PutBotInfo(ctx, domain.BotInfo{
		BotID:            *botID,
		ProviderDomainID: *providerDomain,
		Secret:           *botSecret,
	}); err != nil {
		return fmt.Errorf("seed bot info: %w", err)
	}
	log.Printf("seeded bot info for %s", *botID)

	if *domainID != "" {
		if *clientID == "" || *privateKeyFile == "" {
			return fmt.Errorf("-domain-id requires -client-id and -private-key-file")
		}
		pem, err := os.ReadFile(*privateKeyFile)
		if err != nil {
			return fmt.Errorf("read private key: %w", err)
		}

		if err := store.ClientCredentials().PutClientCredential(ctx, domain.ClientCredential{
			BotID:          *botID,
			DomainID:       *domainID,
			ClientID:       *clientID,
			ClientSecret:   *clientSecret,
			ServiceAccount: *serviceAccount,
			PrivateKey:     string(pem),
		}); err != nil {
			return fmt.Errorf("seed client credential: %w", err)
		}
		if err := store.InstalledApps().PutInstalledApp(ctx, domain.InstalledApp{
			DomainID:       *domainID,
			ServiceAccount: *serviceAccount,
			Version:        "1",
		}); err != nil {
			return fmt.Errorf("seed installed app: %w", err)
		}
		log.Printf("seeded credentials and installation for domain %s", *domainID)
	}

	if *subscribersFile != "" {
		data, err := os.ReadFile(*subscribersFile)
		if err != nil {
			return fmt.Errorf("read subscribers file: %w", err)
		}
		var settings []domain.SubscriberSetting
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parse subscribers file: %w", err)
		}
		for _, s := range settings {
			if err := store.Subscribers().PutSubscriber(ctx, s); err != nil {
				return fmt.Errorf("seed subscriber %s: %w", s.UserID, err)
			}
		}
		log.Printf("seeded %d subscriber settings", len(settings))
	}

	return nil
}
