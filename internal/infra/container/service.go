package container

import "medsign/internal/domain"

// Service adapts the package functions to the seam the usecases consume.
type Service struct {
	// Capacity is the reserved envelope size in DER bytes; zero means
	// DefaultCapacity.
	Capacity int
}

func NewService(capacity int) *Service {
	return &Service{Capacity: capacity}
}

func (s *Service) Reserve(doc []byte) ([]byte, domain.ByteRange, error) {
	return Reserve(doc, s.Capacity)
}

func (s *Service) Digest(prepared []byte, br domain.ByteRange) ([]byte, error) {
	return Digest(prepared, br)
}

func (s *Service) Embed(prepared []byte, br domain.ByteRange, envelope []byte) ([]byte, error) {
	return Embed(prepared, br, envelope)
}

func (s *Service) Extract(signed []byte) (domain.ByteRange, []byte, error) {
	return Extract(signed)
}
