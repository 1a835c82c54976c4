package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"IMProject/global"
	"IMProject/logger"
	"IMProject/middleware"
	midsec "IMProject/middleware/security"
	"IMProject/module/event"
	"IMProject/module/friend"
	friendsvc "IMProject/module/friend/service"
	"IMProject/module/group"
	groupsvc "IMProject/module/group/service"
	"IMProject/module/message"
	"IMProject/module/readindex"
	"IMProject/module/user"
	usersvc "IMProject/module/user/service"
	"IMProject/msgdb"
	"IMProject/service/graph"
	"IMProject/service/mgo"
	"IMProject/service/readdb"
	"IMProject/service/session"
	redisstore "IMProject/service/storage/redis"
	"IMProject/tools/errs"
	jwtsec "IMProject/tools/security"
	"IMProject/tools/specialerror"
)

func main() {
	cfg, err := global.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	global.Setup(cfg)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Infof("chat server start begin!")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 唯一索引冲突对外是业务冲突，不是系统异常
	_ = specialerror.AddErrHandler(func(err error) errs.CodeErrorI {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrUserNameExist
		}
		return nil
	})

	// ===== 存储层 =====

	mgo.StartAsync(rootCtx, &mgo.Config{
		Uri:         cfg.Mongo.Uri,
		Database:    cfg.Mongo.Database,
		Username:    cfg.Mongo.Username,
		Password:    cfg.Mongo.Password,
		MaxPoolSize: cfg.Mongo.MaxPoolSize,
	})
	waitCtx, cancelWait := context.WithTimeout(rootCtx, 30*time.Second)
	defer cancelWait()
	if err := mgo.WaitReady(waitCtx, mgo.Manager()); err != nil {
		logger.Fatalf("mongo not ready: %v", err)
	}
	if err := ensureMongoIndexes(rootCtx); err != nil {
		logger.Fatalf("ensure mongo indexes: %v", err)
	}

	if err := readdb.InitPg(rootCtx, readdb.Config{Dsn: cfg.Postgres.Dsn}); err != nil {
		logger.Fatalf("init postgres: %v", err)
	}
	defer readdb.ClosePg()
	pgRepo := readindex.NewPgRepo(readdb.GetPool())
	if err := pgRepo.EnsureSchema(rootCtx); err != nil {
		logger.Fatalf("ensure read_index schema: %v", err)
	}

	store, err := msgdb.Open(cfg.MsgDB.Dir)
	if err != nil {
		logger.Fatalf("open msgdb: %v", err)
	}
	defer func() { _ = store.Close() }()

	// ===== 登录注册表 =====

	idleTTL := time.Duration(cfg.Session.IdleSeconds) * time.Second
	var registry session.Registry
	if cfg.Session.Store == "redis" {
		if err := redisstore.InitRedis(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}); err != nil {
			logger.Fatalf("init redis: %v", err)
		}
		defer func() { _ = redisstore.CloseRedis() }()
		registry = session.NewRedis(redisstore.GetRedis(), idleTTL)
	} else {
		registry = session.NewMemory(session.MemoryConf{
			IdleTTL:    idleTTL,
			SweepEvery: time.Duration(cfg.Session.SweepMillis) * time.Millisecond,
		})
	}
	defer registry.Close()

	// ===== 服务装配 =====

	graphCli := graph.New(cfg.Dgraph.Addr)
	hub := event.NewHub(cfg.Hub.Capacity)
	defer hub.Close()

	jwtOpts := jwtsec.Options{Secret: global.GetJwtSecret(), Alg: "HS256", TTL: idleTTL}
	userSvc := usersvc.NewService(graphCli, registry, jwtOpts)
	groupSvc := groupsvc.NewService(userSvc)
	riSvc := readindex.NewService(pgRepo, groupSvc)
	msgSvc := message.NewService(store, hub, riSvc, groupSvc)
	friendSvc := friendsvc.NewService(graphCli, userSvc)

	// ===== 路由 =====

	auth := midsec.New(jwtOpts, registry, userSvc.LoadAuthUser)
	routes := middleware.NewRoutes(auth.Require(), auth.RequireNormal(), auth.RequireAdmin())

	e := gin.New()
	e.Use(gin.Recovery(), middleware.Origin())

	user.RegisterRoutes(e, routes, user.NewHandler(userSvc))
	group.RegisterRoutes(e, routes, group.NewHandler(groupSvc))
	friend.RegisterRoutes(e, routes, friend.NewHandler(friendSvc))
	message.RegisterRoutes(e, routes, message.NewHandler(msgSvc, groupSvc))
	readindex.RegisterRoutes(e, routes, readindex.NewHandler(riSvc))
	event.RegisterRoutes(e, routes, event.NewStreamHandler(hub), event.NewWSHandler(hub))

	srv := &http.Server{Addr: cfg.Host.Server, Handler: e}
	go func() {
		logger.Infof("chat server started on %s", cfg.Host.Server)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Infof("chat server shutting down ...")
	shutCtx, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}

// ensureMongoIndexes 业务约束落到库层：登录名唯一、
// 群成员与好友请求按对查询且不重复。
func ensureMongoIndexes(ctx context.Context) error {
	db := mgo.GetDB()

	_, err := db.Collection("user").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = db.Collection("user_group_rel").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "user_id", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection("friend_request").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "request_id", Value: 1}, {Key: "target_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
