package main

import (
	"context"
	"errors"

	"github.com/INT-devs/mining-pool/internal/ledger"
	"github.com/INT-devs/mining-pool/internal/stratum"
	"github.com/INT-devs/mining-pool/internal/work"
	"github.com/INT-devs/mining-pool/pkg/log"
)

// messageHandler implements stratum.MessageHandler, translating the Stratum
// V1 request set into core.Engine/work.Director/ledger.Ledger calls.
type messageHandler struct {
	pool   *Pool
	logger *log.Logger
}

func (h *messageHandler) HandleMessage(ctx context.Context, session *stratum.Session, msg *stratum.Message) error {
	if !msg.IsRequest() {
		h.logger.Debug("ignoring non-request message", "method", msg.Method)
		return nil
	}

	switch msg.Method {
	case "mining.subscribe":
		return h.handleSubscribe(session, msg)
	case "mining.authorize":
		return h.handleAuthorize(session, msg)
	case "mining.submit":
		return h.handleSubmit(ctx, session, msg)
	default:
		h.logger.Warn("unknown method", "method", msg.Method)
		return session.SendError(msg.ID, stratum.ErrorMethodNotFound, "Method not found")
	}
}

func (h *messageHandler) handleSubscribe(session *stratum.Session, msg *stratum.Message) error {
	req, err := stratum.ParseSubscribeRequest(msg.Params)
	if err != nil {
		return session.SendError(msg.ID, stratum.ErrorInvalidParams, "Invalid parameters")
	}

	director := h.pool.director
	extraNonce1 := work.NextExtraNonce1(director.ExtraNonce1Size())
	session.SetExtraNonce1(extraNonce1)
	session.SetSubscribed(true)

	h.logger.Info("miner subscribed", "user_agent", req.UserAgent, "session_id", session.ID())

	resp := stratum.NewSubscribeResponse(session.ID(), extraNonce1, director.ExtraNonce2Size())
	return session.SendResponse(msg.ID, []interface{}{
		resp.Subscriptions,
		resp.ExtraNonce1,
		resp.ExtraNonce2Size,
	})
}

func (h *messageHandler) handleAuthorize(session *stratum.Session, msg *stratum.Message) error {
	if !session.IsSubscribed() {
		return session.SendError(msg.ID, stratum.ErrorNotSubscribed, "Not subscribed")
	}

	req, err := stratum.ParseAuthorizeRequest(msg.Params)
	if err != nil {
		return session.SendError(msg.ID, stratum.ErrorInvalidParams, "Invalid parameters")
	}

	address, workerName := stratum.SplitWorkerName(req.Username)
	if len(address) < 26 {
		return session.SendError(msg.ID, stratum.ErrorUnauthorized, "Invalid address")
	}

	engine := h.pool.engine
	if miner := engine.GetOrCreateMiner(address, address); miner != nil {
		if engine.IsBanned(miner.ID) {
			return session.SendError(msg.ID, stratum.ErrorUnauthorized, "Miner is banned")
		}

		worker := engine.RegisterWorker(miner.ID, workerName, session.RemoteAddr(), session.ID(), h.pool.cfg.MinDifficulty)
		if worker == nil {
			return session.SendError(msg.ID, stratum.ErrorOther, "Failed to register worker")
		}

		session.SetUsername(address)
		session.SetWorkerName(workerName)
		session.SetMinerID(miner.ID)
		session.SetWorkerID(worker.ID)
		session.SetDifficulty(worker.Difficulty)
		session.SetAuthorized(true)
	}

	h.logger.Info("miner authorized", "miner_address", address, "worker_name", workerName)

	if err := session.SendNotification("mining.set_difficulty", []interface{}{session.Difficulty()}); err != nil {
		h.logger.WithError(err).Error("failed to send initial difficulty")
	}

	if job := h.pool.director.CurrentJob(); job != nil {
		h.pool.sendJobToSession(session, job)
	}

	return session.SendResponse(msg.ID, true)
}

func (h *messageHandler) handleSubmit(ctx context.Context, session *stratum.Session, msg *stratum.Message) error {
	if !session.IsAuthorized() {
		return session.SendError(msg.ID, stratum.ErrorUnauthorized, "Not authorized")
	}

	req, err := stratum.ParseSubmitRequest(msg.Params)
	if err != nil {
		return session.SendError(msg.ID, stratum.ErrorInvalidParams, "Invalid parameters")
	}

	sub := ledger.Submission{
		MinerID:     session.MinerID(),
		WorkerID:    session.WorkerID(),
		JobID:       req.JobID,
		ExtraNonce1: session.ExtraNonce1(),
		ExtraNonce2: req.ExtraNonce2,
		NTime:       req.NTime,
		Nonce:       req.Nonce,
		Difficulty:  session.Difficulty(),
	}

	h.logger.LogShareSubmission(session.Username(), session.WorkerName(), req.JobID, session.Difficulty(), "pending")

	result, err := h.pool.ledger.Submit(ctx, sub)
	if err != nil {
		var rejectErr *ledger.RejectError
		if errors.As(err, &rejectErr) {
			go h.pool.publishShareEvent(req.JobID+":"+req.Nonce, req.JobID, session.Username(), session.WorkerName(), rejectErr.Message, false)
			return session.SendError(msg.ID, int(rejectErr.Code), rejectErr.Message)
		}
		h.logger.WithError(err).Error("share submission failed")
		return session.SendError(msg.ID, stratum.ErrorOther, "Internal error")
	}

	if result.DifficultyChanged {
		session.SetDifficulty(result.NewDifficulty)
		if err := session.SendNotification("mining.set_difficulty", []interface{}{result.NewDifficulty}); err != nil {
			h.logger.WithError(err).Error("failed to send difficulty adjustment")
		}
	}

	if result.IsBlock {
		h.logger.LogBlockFound(result.BlockHash, result.BlockHeight, session.Username(), session.WorkerName(), result.ShareDifficulty)
		go h.pool.publishBlockEvent(result.BlockHash, result.BlockHeight, session.Username(), session.WorkerName(), "accepted")
	}

	go h.pool.publishShareEvent(req.JobID+":"+req.Nonce, req.JobID, session.Username(), session.WorkerName(), "valid", result.IsBlock)

	return session.SendResponse(msg.ID, true)
}
