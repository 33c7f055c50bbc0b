package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/slack-go/slack"
	"github.com/sohosai/sos26-sub000/config"
	"github.com/sohosai/sos26-sub000/domain/fileaccess"
	"github.com/sohosai/sos26-sub000/domain/infra"
	"github.com/sohosai/sos26-sub000/domain/inquiry"
	"github.com/sohosai/sos26-sub000/handler"
)

func newDatastore(ctx context.Context, c *config.Config) (infra.Datastore, error) {
	if c.DBDriver == config.DBDriverDynamoDB {
		return infra.NewDynamoDB(ctx, infra.DynamoDBConfig{
			TableNamePrefix: c.DynamoTableNamePrefix,
			LocalEndpoint:   c.DynamoLocal,
		})
	}
	return infra.NewDataBase(c.DBPath)
}

func main() {
	c, err := config.Load()
	if err != nil {
		slog.Error("config.Load failed", slog.Any("err", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ds, err := newDatastore(ctx, c)
	if err != nil {
		slog.Error("newDatastore failed", slog.Any("err", err), slog.String("driver", c.DBDriver))
		os.Exit(1)
	}
	if closer, ok := ds.(io.Closer); ok {
		defer closer.Close()
	}

	opts := []inquiry.Option{}
	if c.SlackEnabled() {
		n := infra.NewSlackNotifier(slack.New(c.SlackBotToken), c.SlackNotifyChannel, c.BaseURL)
		defer n.Stop()
		opts = append(opts, inquiry.WithNotifier(n))
	}

	ai, err := infra.NewOpenAI(infra.OpenAIConfig{
		APIKey:          c.OpenAIAPIKey,
		Model:           c.OpenAIModel,
		AzureKey:        c.AzureOpenAIKey,
		AzureEndpoint:   c.AzureOpenAIEndpoint,
		AzureAPIVersion: c.AzureOpenAIAPIVersion,
	})
	if err != nil {
		slog.Error("NewOpenAI failed", slog.Any("err", err))
		os.Exit(1)
	}
	if ai != nil {
		opts = append(opts, inquiry.WithSummarizer(ai))
	}

	var presigner infra.Presigner
	if c.S3Bucket != "" {
		p, err := infra.NewS3Presigner(ctx, infra.S3Config{
			Bucket:   c.S3Bucket,
			Endpoint: c.S3Endpoint,
			TTL:      c.PresignTTL,
		})
		if err != nil {
			slog.Error("NewS3Presigner failed", slog.Any("err", err))
			os.Exit(1)
		}
		presigner = p
	} else {
		slog.Warn("S3_BUCKET is not set, file endpoints are disabled")
	}

	signer, err := fileaccess.NewSigner(c.FileTokenSecret)
	if err != nil {
		slog.Error("NewSigner failed", slog.Any("err", err))
		os.Exit(1)
	}

	svc := inquiry.NewService(ds, opts...)
	// 登録順に評価される
	chain := fileaccess.NewChain(
		svc.AttachmentChecker(),
		fileaccess.PublicFileChecker(ds),
	)

	h := handler.NewHandler(ds, svc, chain, signer, presigner, handler.Options{
		TokenTTL:       c.FileTokenTTL,
		MemberCacheTTL: c.MemberCacheTTL,
	})
	defer h.Stop()

	slog.Info("Server listening", slog.String("bind", c.ListenSocket), slog.String("driver", c.DBDriver))
	if err := h.Handle(ctx, c.ListenSocket); err != nil {
		slog.Error("Server failed", slog.Any("err", err))
		os.Exit(1)
	}
}
