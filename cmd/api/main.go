package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/gateway"
	"storefront/internal/handler"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/server"
	"storefront/internal/usecase"
	"storefront/internal/worker"
	"storefront/pkg/rabbitmq"

	"github.com/joho/godotenv"
)

func main() {
	//.envは開発用。無くても環境変数だけで動く。
	if err := godotenv.Load(); err != nil {
		log.Printf(".env not loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	//Repository（GORM実装）生成
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	lineItemRepo := infraRepo.NewLineItemGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//決済ゲートウェイ
	gw := gateway.NewPortOneClient(cfg.PortOneBaseURL, cfg.PortOneAPISecret, cfg.PortOneStoreID, cfg.GatewayTimeout)

	//注文イベントの配信。ブローカー不達でも起動は止めない。
	var events usecase.EventPublisher
	mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
	if err != nil {
		log.Printf("rabbitmq unavailable, order events disabled: %v", err)
	} else {
		defer mq.Close()
		events = mq
	}

	//Usecase生成
	cartUC := usecase.NewCartUsecase(orderRepo, lineItemRepo, productRepo)
	checkoutUC := usecase.NewCheckoutUsecase(txManager, gw, cfg.Currency, cfg.GatewayTimeout)
	reconcileUC := usecase.NewReconcileUsecase(txManager, orderRepo, gw, events, cfg.GatewayTimeout)
	cancelUC := usecase.NewCancelUsecase(txManager, events)

	//Handler生成
	cartH := handler.NewCartHandler(cartUC)
	orderH := handler.NewOrderHandler(checkoutUC, cancelUC)
	paymentH := handler.NewPaymentHandler(reconcileUC)

	e := server.New(cfg, cartH, orderH, paymentH)

	//失効スイーパー起動
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	expireWorker := worker.NewExpireWorker(cancelUC, cfg.PendingTTL, cfg.SweepInterval)
	go expireWorker.Run(ctx)

	//Server起動
	go func() {
		if err := server.Start(e, cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx, e); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
