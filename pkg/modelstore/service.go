package modelstore

import (
	"context"
	"io"

	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
)

const defaultChunkSize = 1 << 20 // 1 MiB, spec.md §4.5's default chunk_size_bytes

// GradientSubmitter is the seam SubmitGradients delegates to — the
// training job coordinator, wired in by cmd/orchestrator. Kept as an
// interface so modelstore has no import-time dependency on coordinator.
type GradientSubmitter interface {
	SubmitGradients(ctx context.Context, req *protocol.SubmitGradientsRequest) (*protocol.SubmitGradientsResponse, error)
}

// Service implements protocol.ModelServiceServer: the chunked blob
// transport (spec.md §4.5) plus gradient submission, delegated to a
// GradientSubmitter.
type Service struct {
	protocol.UnimplementedModelServiceServer

	store     *Store
	submitter GradientSubmitter
	chunkSize int
}

func NewService(store *Store, submitter GradientSubmitter, chunkSize int) *Service {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Service{store: store, submitter: submitter, chunkSize: chunkSize}
}

// DownloadModel streams a model as metadata frame + chunk frames, per
// spec.md §4.5's chunked transport contract.
func (s *Service) DownloadModel(req *protocol.DownloadModelRequest, stream protocol.ModelService_DownloadModelServer) error {
	stat, err := s.store.Stat(req.ModelId)
	if err != nil {
		return utils.GrpcError(err)
	}

	reader, err := s.store.Open(req.ModelId)
	if err != nil {
		return utils.GrpcError(err)
	}
	defer reader.Close()

	totalChunks := (stat.Size + int64(s.chunkSize) - 1) / int64(s.chunkSize)
	if stat.Size == 0 {
		totalChunks = 0
	}

	if err := stream.Send(&protocol.ModelChunk{
		Metadata: &protocol.ModelChunkMetadata{
			ModelId:     stat.ModelID,
			Size:        stat.Size,
			TotalChunks: totalChunks,
			ChunkSize:   int64(s.chunkSize),
			Sha256:      stat.ModelID,
		},
	}); err != nil {
		return utils.GrpcError(err)
	}

	buf := make([]byte, s.chunkSize)
	for index := int64(0); ; index++ {
		n, readErr := io.ReadFull(reader, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := stream.Send(&protocol.ModelChunk{
				Chunk: &protocol.ModelChunkData{ChunkIndex: index, Bytes: chunk},
			}); err != nil {
				return utils.GrpcError(err)
			}
		}

		if readErr == io.EOF || readErr == io.ErrUnexpectedEOF {
			return nil
		}
		if readErr != nil {
			return utils.GrpcError(readErr)
		}
	}
}

// UploadModel accepts the same framed sequence in reverse (admin-only,
// spec.md §6) and stores the reassembled blob.
func (s *Service) UploadModel(stream protocol.ModelService_UploadModelServer) error {
	var data []byte
	var expected *protocol.ModelChunkMetadata

	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return utils.GrpcError(err)
		}

		if msg.Metadata != nil {
			expected = msg.Metadata
			data = make([]byte, 0, expected.Size)
			continue
		}
		if msg.Chunk != nil {
			data = append(data, msg.Chunk.Bytes...)
		}
	}

	if expected != nil && int64(len(data)) != expected.Size {
		return utils.GrpcError(utils.ErrPrecondition)
	}

	modelID, err := s.store.Put(data)
	if err != nil {
		return utils.GrpcError(err)
	}

	return stream.SendAndClose(&protocol.UploadModelResponse{ModelId: modelID})
}

// SubmitGradients delegates to the configured GradientSubmitter.
func (s *Service) SubmitGradients(ctx context.Context, req *protocol.SubmitGradientsRequest) (*protocol.SubmitGradientsResponse, error) {
	resp, err := s.submitter.SubmitGradients(ctx, req)
	if err != nil {
		return nil, utils.GrpcError(err)
	}
	return resp, nil
}
